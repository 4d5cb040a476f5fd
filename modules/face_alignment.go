package modules

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/okieraised/go-face-alignment/config"
	"github.com/okieraised/go-face-alignment/utils"
	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/mat"
	"gorgonia.org/tensor"
)

const (
	// float32Epsilon is the machine epsilon of the float32 values the results are stored in.
	float32Epsilon = 1.1920929e-07
	// rankTolerance is the smallest singular value counted towards the covariance rank.
	rankTolerance = 1e-6
)

type FaceAlignmentClient struct {
	faceSize  int
	fillColor color.RGBA
	template  [5]config.Coordinate2D
}

// NewFaceAlignmentClient initializes a new FaceAlignmentClient. A nil faceTemplate selects
// the MobileFaceNet template.
func NewFaceAlignmentClient(cfg *config.FaceAlignmentParams, faceTemplate *tensor.Dense) (*FaceAlignmentClient, error) {
	if cfg == nil {
		cfg = config.DefaultFaceAlignmentParams
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if faceTemplate == nil {
		faceTemplate = config.FaceTemplateTensor()
	}
	template, err := utils.TensorToCoordinates(faceTemplate)
	if err != nil {
		return nil, err
	}

	return &FaceAlignmentClient{
		faceSize:  cfg.FaceSize,
		fillColor: cfg.FillColor,
		template:  template,
	}, nil
}

// FaceSize returns the side of the aligned face.
func (c *FaceAlignmentClient) FaceSize() int {
	return c.faceSize
}

// similarity is a fitted dst = scale * R * src + t.
type similarity struct {
	r       utils.Matrix2
	scale   float64
	tx, ty  float64
	srcMean [2]float64
	dstMean [2]float64
}

// estimateSimilarity is the Umeyama least-squares fit of src onto the template.
func (c *FaceAlignmentClient) estimateSimilarity(src [5]config.Coordinate2D) (*similarity, error) {
	srcMx, srcMy := meanCoordinate(src)
	dstMx, dstMy := meanCoordinate(c.template)
	n := float64(len(src))

	var a utils.Matrix2
	var srcVar float64
	for i := range src {
		sx := float64(src[i].X) - srcMx
		sy := float64(src[i].Y) - srcMy
		dx := float64(c.template[i].X) - dstMx
		dy := float64(c.template[i].Y) - dstMy

		a[0][0] += dx * sx
		a[0][1] += dx * sy
		a[1][0] += dy * sx
		a[1][1] += dy * sy
		srcVar += sx*sx + sy*sy
	}
	for i := range 2 {
		for j := range 2 {
			a[i][j] /= n
		}
	}
	srcVar /= n

	d := [2]float64{1, 1}
	if a.Det() < 0 {
		d[1] = -1
	}

	svd, err := utils.SVD2x2(a)
	if err != nil {
		return nil, config.NewPostprocessError("estimate similarity transform", err)
	}

	var r utils.Matrix2
	switch svd.Rank(rankTolerance) {
	case 0:
		return nil, config.NewPostprocessError("estimate similarity transform", errors.New("failed to estimate similarity transform (rank=0)"))
	case 1:
		if svd.U.Det()*svd.V.Det() > 0 {
			r = svd.U.Mul(svd.V.T())
		} else {
			// the last entry is forced to -1 for R only, d keeps its value for the scale
			r = svd.U.Mul(utils.Diag2(d[0], -1)).Mul(svd.V.T())
		}
	default:
		r = svd.U.Mul(utils.Diag2(d[0], d[1])).Mul(svd.V.T())
	}

	scale := 1.0
	if srcVar > float32Epsilon {
		scale = (svd.S[0]*d[0] + svd.S[1]*d[1]) / srcVar
	}

	rx, ry := r.MulVec(srcMx, srcMy)
	return &similarity{
		r:       r,
		scale:   scale,
		tx:      dstMx - scale*rx,
		ty:      dstMy - scale*ry,
		srcMean: [2]float64{srcMx, srcMy},
		dstMean: [2]float64{dstMx, dstMy},
	}, nil
}

// EstimateSimilarityTransform fits a similarity transform mapping the pixel landmarks onto
// the normalized face template.
//
// Inputs:
//
//   - landmark (config.FaceLandmark): five landmarks in source pixel coordinates.
//
// Outputs:
//
//   - alignment (config.AlignmentResult): affine matrix, center, size and rotation.
func (c *FaceAlignmentClient) EstimateSimilarityTransform(landmark config.FaceLandmark) (config.AlignmentResult, error) {
	var res config.AlignmentResult

	sim, err := c.estimateSimilarity(landmark.Points())
	if err != nil {
		return res, err
	}

	size := 1.0
	if math.Abs(sim.scale) > float32Epsilon {
		size = 1 / sim.scale
	}
	rotation := math.Atan2(sim.r[1][0], sim.r[0][0])
	centerX := sim.srcMean[0] - (sim.dstMean[0]-0.5)*size
	centerY := sim.srcMean[1] - (sim.dstMean[1]-0.5)*size

	values := []float64{
		sim.scale * sim.r[0][0], sim.scale * sim.r[0][1], sim.tx,
		sim.scale * sim.r[1][0], sim.scale * sim.r[1][1], sim.ty,
		size, rotation, centerX, centerY,
	}
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return res, config.NewPostprocessError("estimate similarity transform", fmt.Errorf("non-finite transform for landmarks %v", landmark))
		}
	}

	res.AffineMatrix = [3][3]float32{
		{float32(values[0]), float32(values[1]), float32(values[2])},
		{float32(values[3]), float32(values[4]), float32(values[5])},
		{0, 0, 1},
	}
	res.Size = float32(size)
	res.Rotation = float32(rotation)
	res.Center = config.Coordinate2D{X: float32(centerX), Y: float32(centerY)}
	return res, nil
}

// scaleToCanvas scales a normalized affine matrix to output pixels. Entries equal to 1
// are left as they are, which keeps the homogeneous corner at exactly 1.
func (c *FaceAlignmentClient) scaleToCanvas(affine [3][3]float32) [3][3]float64 {
	var out [3][3]float64
	for row := range 3 {
		for col := range 3 {
			v := affine[row][col]
			if math.Abs(float64(v)-1) <= float32Epsilon {
				out[row][col] = 1
			} else {
				out[row][col] = float64(v) * float64(c.faceSize)
			}
		}
	}
	return out
}

// WarpFace resamples the source image through the alignment transform onto a
// FaceSize x FaceSize canvas with bicubic interpolation. Pixels sampled outside of the
// source are filled with the configured gray.
//
// Inputs:
//
//   - source (gocv.Mat): CV_8UC3 RGB source image.
//   - affine ([3][3]float32): matrix from EstimateSimilarityTransform.
//
// Outputs:
//
//   - face (gocv.Mat): CV_8UC3 aligned face, owned by the caller.
func (c *FaceAlignmentClient) WarpFace(source gocv.Mat, affine [3][3]float32) (gocv.Mat, error) {
	face := gocv.NewMat()
	if source.Empty() || source.Type() != gocv.MatTypeCV8UC3 {
		return face, config.NewPreprocessError("warp face", fmt.Errorf("expected a non-empty CV_8UC3 source image"))
	}

	transform := c.scaleToCanvas(affine)
	data := make([]float64, 0, 9)
	for _, row := range transform {
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return face, config.NewPostprocessError("warp face", fmt.Errorf("invalid affine matrix projection %v", transform))
			}
			data = append(data, v)
		}
	}
	var inv mat.Dense
	if err := inv.Inverse(mat.NewDense(3, 3, data)); err != nil {
		return face, config.NewPostprocessError("warp face", fmt.Errorf("invalid affine matrix projection: %w", err))
	}

	projection := gocv.NewMatWithSize(3, 3, gocv.MatTypeCV64F)
	defer projection.Close()
	for row := range 3 {
		for col := range 3 {
			projection.SetDoubleAt(row, col, transform[row][col])
		}
	}

	gocv.WarpPerspectiveWithParams(
		source,
		&face,
		projection,
		image.Point{
			X: c.faceSize,
			Y: c.faceSize,
		},
		gocv.InterpolationCubic,
		gocv.BorderConstant,
		c.fillColor,
	)
	return face, nil
}

// NormalizeFace maps the aligned face to the network input: v/127.5 - 1 per channel,
// HWC row-major, shape (FaceSize, FaceSize, 3).
func (c *FaceAlignmentClient) NormalizeFace(face gocv.Mat) (*tensor.Dense, error) {
	if face.Rows() != c.faceSize || face.Cols() != c.faceSize || face.Type() != gocv.MatTypeCV8UC3 {
		return nil, config.NewPostprocessError("normalize face", fmt.Errorf("expected a %dx%d CV_8UC3 face, got %dx%d", c.faceSize, c.faceSize, face.Cols(), face.Rows()))
	}

	pixels := face.ToBytes()
	backing := make([]float32, len(pixels))
	for i, v := range pixels {
		backing[i] = float32(v)/127.5 - 1
	}

	return tensor.New(
		tensor.Of(tensor.Float32),
		tensor.WithShape(c.faceSize, c.faceSize, 3),
		tensor.WithBacking(backing),
	), nil
}
