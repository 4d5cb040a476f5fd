package config

import (
	"fmt"

	"gorgonia.org/tensor"
)

type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (s *Size) Max() int {
	if s.Height > s.Width {
		return s.Height
	}
	return s.Width
}

func (s *Size) Min() int {
	if s.Height < s.Width {
		return s.Height
	}
	return s.Width
}

// DecodedImage is a packed 8-bit RGB pixel buffer of Dimensions.Width*Dimensions.Height*3 bytes.
type DecodedImage struct {
	Dimensions Size   `json:"dimensions"`
	RGB        []byte `json:"-"`
}

// Validate checks that the pixel buffer can back an image of the stated dimensions.
func (d *DecodedImage) Validate() error {
	if d == nil {
		return NewPreprocessError("decode", fmt.Errorf("nil decoded image"))
	}
	w, h := d.Dimensions.Width, d.Dimensions.Height
	if w <= 0 || h <= 0 {
		return NewPreprocessError("decode", fmt.Errorf("invalid image dimensions %dx%d", w, h))
	}
	if len(d.RGB) != w*h*3 {
		return NewPreprocessError("decode", fmt.Errorf("failed to build RGB source image: got %d bytes, expected %d", len(d.RGB), w*h*3))
	}
	return nil
}

type Coordinate2D struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
}

// FaceLandmark holds the five landmarks in detector order.
type FaceLandmark struct {
	LeftEye    Coordinate2D `json:"left_eye"`
	RightEye   Coordinate2D `json:"right_eye"`
	Nose       Coordinate2D `json:"nose"`
	LeftMouth  Coordinate2D `json:"left_mouth"`
	RightMouth Coordinate2D `json:"right_mouth"`
}

// Points returns the landmarks as left eye, right eye, nose, left mouth, right mouth.
func (l *FaceLandmark) Points() [5]Coordinate2D {
	return [5]Coordinate2D{l.LeftEye, l.RightEye, l.Nose, l.LeftMouth, l.RightMouth}
}

func NewFaceLandmark(points [5]Coordinate2D) FaceLandmark {
	return FaceLandmark{
		LeftEye:    points[0],
		RightEye:   points[1],
		Nose:       points[2],
		LeftMouth:  points[3],
		RightMouth: points[4],
	}
}

func ConvertMetadataToTensors(meta *FaceLandmark) *tensor.Dense {
	tMeta := tensor.New(
		tensor.Of(tensor.Float32),
		tensor.WithShape(5, 2),
		tensor.WithBacking(
			[]float32{
				meta.LeftEye.X, meta.LeftEye.Y,
				meta.RightEye.X, meta.RightEye.Y,
				meta.Nose.X, meta.Nose.Y,
				meta.LeftMouth.X, meta.LeftMouth.Y,
				meta.RightMouth.X, meta.RightMouth.Y,
			},
		),
	)

	return tMeta
}

// BoundingBox is an x1,y1,x2,y2 box.
type BoundingBox struct {
	X1, Y1 float32
	X2, Y2 float32
}

func (b BoundingBox) Width() float32 {
	return b.X2 - b.X1
}

func (b BoundingBox) Height() float32 {
	return b.Y2 - b.Y1
}

func (b BoundingBox) Center() Coordinate2D {
	return Coordinate2D{
		X: (b.X1 + b.X2) / 2,
		Y: (b.Y1 + b.Y2) / 2,
	}
}

func (b BoundingBox) Area() float32 {
	return b.Width() * b.Height()
}

// FaceDetection is what the external detector hands over: a box and five keypoints,
// both relative to the image size ([0,1]).
type FaceDetection struct {
	BoxXYXY   [4]float32    `json:"box_xyxy"`
	Keypoints [5][2]float32 `json:"keypoints"`
}

func (d *FaceDetection) BoundingBox() BoundingBox {
	return BoundingBox{X1: d.BoxXYXY[0], Y1: d.BoxXYXY[1], X2: d.BoxXYXY[2], Y2: d.BoxXYXY[3]}
}

// Landmarks returns the keypoints as a FaceLandmark, still in relative coordinates.
func (d *FaceDetection) Landmarks() FaceLandmark {
	var points [5]Coordinate2D
	for i, kp := range d.Keypoints {
		points[i] = Coordinate2D{X: kp[0], Y: kp[1]}
	}
	return NewFaceLandmark(points)
}

// AlignmentResult describes the similarity transform from image pixels to the
// normalized [0,1] template space.
type AlignmentResult struct {
	AffineMatrix [3][3]float32 `json:"affine_matrix"` // AffineMatrix upper-left 2x2 block is scale*R, last row is [0,0,1].
	Center       Coordinate2D  `json:"center"`        // Center is where the template center maps back to in the source image.
	Size         float32       `json:"size"`          // Size is the inverse of the estimated scale.
	Rotation     float32       `json:"rotation"`      // Rotation is the angle of R in radians.
}

// FaceDirection is the coarse head pose.
type FaceDirection int

const (
	FaceDirectionStraight FaceDirection = iota
	FaceDirectionLeft
	FaceDirectionRight
)

func (d FaceDirection) String() string {
	switch d {
	case FaceDirectionLeft:
		return "left"
	case FaceDirectionRight:
		return "right"
	default:
		return "straight"
	}
}

func (d FaceDirection) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// FaceResult defines the per-detection output handed to the embedding stage.
type FaceResult struct {
	Detection FaceDetection   `json:"detection"`  // Detection is the detector output, untouched.
	BlurValue float32         `json:"blur_value"` // BlurValue is the Laplacian variance; lower is blurrier.
	Direction FaceDirection   `json:"direction"`  // Direction is the heuristic head pose.
	Alignment AlignmentResult `json:"alignment"`  // Alignment is the fitted transform, also used for crop previews.
	Embedding []float32       `json:"embedding"`  // Embedding is filled by the embedding network, empty here.
	FaceID    string          `json:"face_id"`    // FaceID is derived from the file id and the box.
	Err       error           `json:"-"`          // Err is set when this detection could not be aligned.
}

// IsBlurry compares the blur score against a caller-chosen cutoff.
func (r *FaceResult) IsBlurry(threshold float32) bool {
	return r.BlurValue < threshold
}
