package modules

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/okieraised/go-face-alignment/config"
	"github.com/okieraised/go-face-alignment/utils"
	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/stat"
)

// FaceQualityClient scores the sharpness of aligned faces with the variance of the
// Laplacian response. Lower scores are blurrier.
type FaceQualityClient struct {
	removeSideColumns int
	hardThreshold     float32
}

func NewFaceQualityClient(cfg *config.FaceAlignmentParams) (*FaceQualityClient, error) {
	if cfg == nil {
		cfg = config.DefaultFaceAlignmentParams
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &FaceQualityClient{
		removeSideColumns: cfg.RemoveSideColumns,
		hardThreshold:     cfg.LaplacianHardThreshold,
	}, nil
}

// ComputeBlur returns the direction-aware Laplacian variance of the aligned face. A crop
// that leaves nothing to score yields hardThreshold+1 so the face is not rejected as blurry.
//
// Inputs:
//
//   - face (gocv.Mat): CV_8UC3 RGB aligned face.
//   - direction (config.FaceDirection): head pose from ClassifyFaceDirection.
//
// Outputs:
//
//   - blur (float32): population variance of the Laplacian response.
func (c *FaceQualityClient) ComputeBlur(face gocv.Mat, direction config.FaceDirection) (float32, error) {
	gray, err := c.toGrayscale(face)
	if err != nil {
		return 0, err
	}
	defer gray.Close()

	padded := c.padForDirection(gray, direction)
	defer padded.Close()

	variance := stat.PopVariance(c.laplacian(padded), nil)
	if math.IsNaN(variance) || math.IsInf(variance, 0) {
		return c.hardThreshold + 1, nil
	}
	return float32(variance), nil
}

// toGrayscale converts RGB to 8-bit luma, 0.299R + 0.587G + 0.114B rounded to nearest.
func (c *FaceQualityClient) toGrayscale(face gocv.Mat) (gocv.Mat, error) {
	if face.Empty() || face.Type() != gocv.MatTypeCV8UC3 {
		return gocv.NewMat(), config.NewPostprocessError("compute blur", fmt.Errorf("expected a non-empty CV_8UC3 face"))
	}

	src := face.Clone()
	defer src.Close()
	pixels := src.ToBytes()

	gray := make([]byte, len(pixels)/3)
	for i := range gray {
		r, g, b := float32(pixels[i*3]), float32(pixels[i*3+1]), float32(pixels[i*3+2])
		luma := math.Round(float64(0.299*r + 0.587*g + 0.114*b))
		gray[i] = uint8(utils.Clamp(luma, 0, 255))
	}

	out, err := gocv.NewMatFromBytes(src.Rows(), src.Cols(), gocv.MatTypeCV8U, gray)
	if err != nil {
		return out, config.NewPostprocessError("compute blur", err)
	}
	return out, nil
}

// padForDirection keeps cols-removeSideColumns columns, starting at removeSideColumns/2
// for Straight, removeSideColumns for Left and 0 for Right, then reflect-pads one pixel
// on every side with the row or column next to the border. An empty Mat is returned when
// nothing is left after cropping.
func (c *FaceQualityClient) padForDirection(gray gocv.Mat, direction config.FaceDirection) gocv.Mat {
	padded := gocv.NewMat()

	copyCols := gray.Cols() - c.removeSideColumns
	if copyCols <= 0 || gray.Rows() == 0 {
		return padded
	}

	var startCol int
	switch direction {
	case config.FaceDirectionLeft:
		startCol = c.removeSideColumns
	case config.FaceDirectionRight:
		startCol = 0
	default:
		startCol = c.removeSideColumns / 2
	}

	// region shares memory with gray and must be cloned before it is bordered
	region := gray.Region(image.Rect(startCol, 0, startCol+copyCols, gray.Rows()))
	defer region.Close()
	cropped := region.Clone()
	defer cropped.Close()

	gocv.CopyMakeBorder(cropped, &padded, 1, 1, 1, 1, gocv.BorderReflect101, color.RGBA{})
	return padded
}

// laplacian applies the four-neighbour kernel to the interior of the padded image and
// returns the response row-major.
func (c *FaceQualityClient) laplacian(padded gocv.Mat) []float64 {
	if padded.Empty() || padded.Rows() < 3 || padded.Cols() < 3 {
		return nil
	}

	response := gocv.NewMat()
	defer response.Close()
	gocv.Laplacian(padded, &response, gocv.MatTypeCV64F, 1, 1, 0, gocv.BorderReflect101)

	interior := response.Region(image.Rect(1, 1, padded.Cols()-1, padded.Rows()-1))
	defer interior.Close()
	values := interior.Clone()
	defer values.Close()

	return utils.BytesToT64[float64](values.ToBytes())
}
