package modules

import (
	"fmt"
	"math"

	"github.com/okieraised/go-face-alignment/config"
)

// FaceIDFunc derives a face identifier from the file id and the detection box. It must be
// deterministic and collision-free per file and box.
type FaceIDFunc func(fileID int64, boxXYXY [4]float32) string

// DefaultFaceID formats the file id followed by the four box coordinates, each written
// with five fractional digits: "<file>_<x1>_<y1>_<x2>_<y2>".
func DefaultFaceID(fileID int64, boxXYXY [4]float32) string {
	id := fmt.Sprintf("%d", fileID)
	for _, v := range boxXYXY {
		id += "_" + fmt.Sprintf("%05d", int64(math.Round(float64(v)*1e5)))
	}
	return id
}

// ToAbsoluteLandmarks converts the relative keypoints of a detection into pixel coordinates.
//
// Inputs:
//
//   - detection (*config.FaceDetection): detector output, keypoints in [0,1].
//   - width, height (int): source image dimensions.
//
// Outputs:
//
//   - landmark (config.FaceLandmark): keypoints multiplied by width and height.
func ToAbsoluteLandmarks(detection *config.FaceDetection, width, height int) config.FaceLandmark {
	w := float32(width)
	h := float32(height)

	var points [5]config.Coordinate2D
	for i, kp := range detection.Keypoints {
		points[i] = config.Coordinate2D{X: kp[0] * w, Y: kp[1] * h}
	}
	return config.NewFaceLandmark(points)
}

func meanCoordinate(points [5]config.Coordinate2D) (float64, float64) {
	var sx, sy float64
	for _, p := range points {
		sx += float64(p.X)
		sy += float64(p.Y)
	}
	return sx / float64(len(points)), sy / float64(len(points))
}
