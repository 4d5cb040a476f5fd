package config

import (
	"image/color"
	"time"

	"github.com/go-playground/validator/v10"
	"gorgonia.org/tensor"
)

const (
	// FaceSize is the side of the square network input. The template below is only
	// valid for this size.
	FaceSize = 112
	// RemoveSideColumns is the number of columns dropped before scoring blur.
	RemoveSideColumns = 56
	// LaplacianHardThreshold is the default blur cutoff; non-finite scores are
	// replaced by LaplacianHardThreshold+1.
	LaplacianHardThreshold float32 = 10.0
)

// mobileFaceNetIdeal5Landmarks is the MobileFaceNet landmark layout for a 112x112 face,
// normalized to [0,1].
var mobileFaceNetIdeal5Landmarks = [5]Coordinate2D{
	{X: 38.2946 / 112.0, Y: 51.6963 / 112.0},
	{X: 73.5318 / 112.0, Y: 51.5014 / 112.0},
	{X: 56.0252 / 112.0, Y: 71.7366 / 112.0},
	{X: 41.5493 / 112.0, Y: 92.3655 / 112.0},
	{X: 70.7299 / 112.0, Y: 92.2041 / 112.0},
}

// MobileFaceNetIdeal5Landmarks returns a copy of the canonical template.
func MobileFaceNetIdeal5Landmarks() [5]Coordinate2D {
	return mobileFaceNetIdeal5Landmarks
}

// FaceTemplateTensor returns the canonical template as a (5,2) tensor.
func FaceTemplateTensor() *tensor.Dense {
	lmk := NewFaceLandmark(mobileFaceNetIdeal5Landmarks)
	return ConvertMetadataToTensors(&lmk)
}

var validate = validator.New()

type FaceAlignmentParams struct {
	FaceSize               int        `json:"face_size" validate:"eq=112"`
	RemoveSideColumns      int        `json:"remove_side_columns" validate:"gte=0,lt=112"`
	LaplacianHardThreshold float32    `json:"laplacian_hard_threshold" validate:"gte=0"`
	BlurThreshold          float32    `json:"blur_threshold" validate:"gte=0"`
	FillColor              color.RGBA `json:"fill_color"`
	Concurrency            int        `json:"concurrency" validate:"gte=1"`
	AbortOnFailure         bool       `json:"abort_on_failure"`
}

func NewFaceAlignmentParams(removeSideColumns int, hardThreshold, blurThreshold float32, concurrency int, abortOnFailure bool) *FaceAlignmentParams {
	return &FaceAlignmentParams{
		FaceSize:               FaceSize,
		RemoveSideColumns:      removeSideColumns,
		LaplacianHardThreshold: hardThreshold,
		BlurThreshold:          blurThreshold,
		FillColor:              color.RGBA{R: 114, G: 114, B: 114, A: 0},
		Concurrency:            concurrency,
		AbortOnFailure:         abortOnFailure,
	}
}

var DefaultFaceAlignmentParams = &FaceAlignmentParams{
	FaceSize:               FaceSize,
	RemoveSideColumns:      RemoveSideColumns,
	LaplacianHardThreshold: LaplacianHardThreshold,
	BlurThreshold:          LaplacianHardThreshold,
	FillColor:              color.RGBA{R: 114, G: 114, B: 114, A: 0},
	Concurrency:            1,
	AbortOnFailure:         false,
}

func (p *FaceAlignmentParams) Validate() error {
	return validate.Struct(p)
}

type FaceEmbeddingParams struct {
	ModelName     string        `json:"model_name" validate:"required"`
	EmbeddingSize int           `json:"embedding_size" validate:"gt=0"`
	ImgSize       int           `json:"img_size" validate:"eq=112"`
	Timeout       time.Duration `json:"timeout" validate:"gt=0"`
}

func NewFaceEmbeddingParams(modelName string, embeddingSize int, timeout time.Duration) *FaceEmbeddingParams {
	return &FaceEmbeddingParams{
		ModelName:     modelName,
		EmbeddingSize: embeddingSize,
		ImgSize:       FaceSize,
		Timeout:       timeout,
	}
}

var DefaultFaceEmbeddingParams = &FaceEmbeddingParams{
	ModelName:     "mobilefacenet",
	EmbeddingSize: 192,
	ImgSize:       FaceSize,
	Timeout:       10 * time.Second,
}

func (p *FaceEmbeddingParams) Validate() error {
	return validate.Struct(p)
}
