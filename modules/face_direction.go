package modules

import (
	"math"

	"github.com/okieraised/go-face-alignment/config"
)

// ClassifyFaceDirection estimates the coarse head pose from absolute landmarks. Left is
// checked before Right, so geometry close to both eyes resolves to Left.
func ClassifyFaceDirection(landmark config.FaceLandmark) config.FaceDirection {
	leftEye, rightEye := landmark.LeftEye, landmark.RightEye
	nose := landmark.Nose
	leftMouth, rightMouth := landmark.LeftMouth, landmark.RightMouth

	eyeDistanceX := abs32(rightEye.X - leftEye.X)
	eyeDistanceY := abs32(rightEye.Y - leftEye.Y)
	mouthDistanceY := abs32(rightMouth.Y - leftMouth.Y)

	isUpright := max(leftEye.Y, rightEye.Y)+0.5*eyeDistanceY < nose.Y &&
		nose.Y+0.5*mouthDistanceY < min(leftMouth.Y, rightMouth.Y)

	noseOutLeft := nose.X < min(leftEye.X, rightEye.X) && nose.X < min(leftMouth.X, rightMouth.X)
	noseOutRight := nose.X > max(leftEye.X, rightEye.X) && nose.X > max(leftMouth.X, rightMouth.X)

	noseNearLeftEye := abs32(nose.X-leftEye.X) < 0.2*eyeDistanceX
	noseNearRightEye := abs32(nose.X-rightEye.X) < 0.2*eyeDistanceX

	switch {
	case noseOutLeft || (isUpright && noseNearLeftEye):
		return config.FaceDirectionLeft
	case noseOutRight || (isUpright && noseNearRightEye):
		return config.FaceDirectionRight
	default:
		return config.FaceDirectionStraight
	}
}

func abs32(v float32) float32 {
	return float32(math.Abs(float64(v)))
}
