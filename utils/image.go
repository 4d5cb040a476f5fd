package utils

import (
	"fmt"
	"image/jpeg"
	"os"

	"github.com/okieraised/go-face-alignment/config"
	"gocv.io/x/gocv"
	"gorgonia.org/tensor"
)

// ConvertImageToMat decodes an encoded image (jpeg, png, ...) into an RGB Mat.
func ConvertImageToMat(bImage []byte) (*gocv.Mat, error) {
	dstMat := gocv.NewMat()
	srcMat, err := gocv.IMDecode(bImage, gocv.IMReadColor)
	if err != nil {
		return &dstMat, err
	}
	defer srcMat.Close()
	if srcMat.Empty() {
		return &dstMat, fmt.Errorf("failed to decode image")
	}

	gocv.CvtColor(srcMat, &dstMat, gocv.ColorBGRToRGB)
	return &dstMat, nil
}

// DecodedImageToMat copies a packed RGB buffer into a CV_8UC3 Mat.
func DecodedImageToMat(decoded *config.DecodedImage) (gocv.Mat, error) {
	if err := decoded.Validate(); err != nil {
		return gocv.NewMat(), err
	}
	mat, err := gocv.NewMatFromBytes(decoded.Dimensions.Height, decoded.Dimensions.Width, gocv.MatTypeCV8UC3, decoded.RGB)
	if err != nil {
		return mat, config.NewPreprocessError("decode", err)
	}
	return mat, nil
}

// MatToDecodedImage copies an RGB CV_8UC3 Mat into a DecodedImage.
func MatToDecodedImage(mat gocv.Mat) (*config.DecodedImage, error) {
	if mat.Empty() || mat.Type() != gocv.MatTypeCV8UC3 {
		return nil, config.NewPreprocessError("decode", fmt.Errorf("expected a non-empty CV_8UC3 image, got type %v", mat.Type()))
	}
	src := mat.Clone()
	defer src.Close()
	return &config.DecodedImage{
		Dimensions: config.Size{Width: src.Cols(), Height: src.Rows()},
		RGB:        src.ToBytes(),
	}, nil
}

// TensorToCoordinates reads a (5,2) landmark tensor.
func TensorToCoordinates(t *tensor.Dense) ([5]config.Coordinate2D, error) {
	var points [5]config.Coordinate2D
	shape := t.Shape()
	if len(shape) != 2 || shape[0] != 5 || shape[1] != 2 {
		return points, fmt.Errorf("expected a 2D tensor with shape (5, 2), got shape: %v", shape)
	}
	data := t.Float32s()
	for i := range 5 {
		points[i] = config.Coordinate2D{
			X: data[i*2],
			Y: data[i*2+1],
		}
	}
	return points, nil
}

// OpenCVImageToJPEG writes an RGB Mat to fPath.
func OpenCVImageToJPEG(fPath string, jpegQuality int, img gocv.Mat) error {
	bgr := gocv.NewMat()
	defer bgr.Close()
	gocv.CvtColor(img, &bgr, gocv.ColorRGBToBGR)

	outImg, err := bgr.ToImage()
	if err != nil {
		return err
	}

	f, err := os.Create(fPath)
	if err != nil {
		return err
	}
	defer f.Close()

	opt := jpeg.Options{
		Quality: jpegQuality,
	}
	err = jpeg.Encode(f, outImg, &opt)
	if err != nil {
		return err
	}
	return nil
}
