package modules

import (
	"testing"

	"github.com/okieraised/go-face-alignment/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func newRGBMat(t *testing.T, rows, cols int, pixel func(y, x int) [3]byte) gocv.Mat {
	t.Helper()
	rgb := make([]byte, rows*cols*3)
	for y := range rows {
		for x := range cols {
			p := pixel(y, x)
			copy(rgb[(y*cols+x)*3:], p[:])
		}
	}
	img, err := gocv.NewMatFromBytes(rows, cols, gocv.MatTypeCV8UC3, rgb)
	require.NoError(t, err)
	return img
}

func checkerboard(t *testing.T, block int) gocv.Mat {
	return newRGBMat(t, config.FaceSize, config.FaceSize, func(y, x int) [3]byte {
		if (y/block+x/block)%2 == 0 {
			return [3]byte{255, 255, 255}
		}
		return [3]byte{0, 0, 0}
	})
}

func TestFaceQualityClient_ComputeBlur_Constant(t *testing.T) {
	client, err := NewFaceQualityClient(nil)
	require.NoError(t, err)

	face := newRGBMat(t, config.FaceSize, config.FaceSize, func(y, x int) [3]byte {
		return [3]byte{114, 114, 114}
	})
	defer face.Close()

	for _, direction := range []config.FaceDirection{config.FaceDirectionStraight, config.FaceDirectionLeft, config.FaceDirectionRight} {
		blur, err := client.ComputeBlur(face, direction)
		require.NoError(t, err)
		assert.Equal(t, float32(0), blur, direction.String())
	}
}

func TestFaceQualityClient_ComputeBlur_Checkerboard(t *testing.T) {
	client, err := NewFaceQualityClient(nil)
	require.NoError(t, err)

	previous := float32(-1)
	for _, block := range []int{16, 8, 4, 2, 1} {
		face := checkerboard(t, block)
		blur, err := client.ComputeBlur(face, config.FaceDirectionStraight)
		face.Close()
		require.NoError(t, err)

		assert.Greater(t, blur, previous, "block size %d", block)
		previous = blur
	}
}

func TestFaceQualityClient_ComputeBlur_EmptyCrop(t *testing.T) {
	client, err := NewFaceQualityClient(nil)
	require.NoError(t, err)

	// narrower than the removed columns, nothing is left to score
	face := newRGBMat(t, 20, 40, func(y, x int) [3]byte {
		return [3]byte{byte(x * 6), 0, byte(y * 10)}
	})
	defer face.Close()

	blur, err := client.ComputeBlur(face, config.FaceDirectionLeft)
	require.NoError(t, err)
	assert.Equal(t, config.LaplacianHardThreshold+1, blur)

	empty := gocv.NewMat()
	defer empty.Close()
	_, err = client.ComputeBlur(empty, config.FaceDirectionLeft)
	assert.ErrorIs(t, err, config.ErrPostprocess)
}

func TestFaceQualityClient_ToGrayscale(t *testing.T) {
	client, err := NewFaceQualityClient(nil)
	require.NoError(t, err)

	colors := [][3]byte{{255, 0, 0}, {0, 255, 0}, {0, 0, 255}, {255, 255, 255}}
	face := newRGBMat(t, 1, len(colors), func(y, x int) [3]byte {
		return colors[x]
	})
	defer face.Close()

	gray, err := client.toGrayscale(face)
	require.NoError(t, err)
	defer gray.Close()

	assert.Equal(t, gocv.MatTypeCV8U, gray.Type())
	assert.Equal(t, uint8(76), gray.GetUCharAt(0, 0))
	assert.Equal(t, uint8(150), gray.GetUCharAt(0, 1))
	assert.Equal(t, uint8(29), gray.GetUCharAt(0, 2))
	assert.Equal(t, uint8(255), gray.GetUCharAt(0, 3))
}

func TestFaceQualityClient_PadForDirection(t *testing.T) {
	client, err := NewFaceQualityClient(config.NewFaceAlignmentParams(2, 10, 10, 1, false))
	require.NoError(t, err)

	values := make([]byte, 3*6)
	for y := range 3 {
		for x := range 6 {
			values[y*6+x] = byte(y*10 + x)
		}
	}
	gray, err := gocv.NewMatFromBytes(3, 6, gocv.MatTypeCV8U, values)
	require.NoError(t, err)
	defer gray.Close()

	at := func(y, x int) uint8 { return values[y*6+x] }

	straight := client.padForDirection(gray, config.FaceDirectionStraight)
	defer straight.Close()
	require.Equal(t, 5, straight.Rows())
	require.Equal(t, 6, straight.Cols())
	assert.Equal(t, at(0, 1), straight.GetUCharAt(1, 1))
	assert.Equal(t, at(2, 4), straight.GetUCharAt(3, 4))
	// borders copy the ring one pixel inside, corners included
	assert.Equal(t, at(1, 1), straight.GetUCharAt(0, 1))
	assert.Equal(t, at(1, 1), straight.GetUCharAt(4, 1))
	assert.Equal(t, at(0, 2), straight.GetUCharAt(1, 0))
	assert.Equal(t, at(0, 3), straight.GetUCharAt(1, 5))
	assert.Equal(t, at(1, 2), straight.GetUCharAt(0, 0))

	left := client.padForDirection(gray, config.FaceDirectionLeft)
	defer left.Close()
	assert.Equal(t, at(0, 2), left.GetUCharAt(1, 1))
	assert.Equal(t, at(0, 5), left.GetUCharAt(1, 4))

	right := client.padForDirection(gray, config.FaceDirectionRight)
	defer right.Close()
	assert.Equal(t, at(0, 0), right.GetUCharAt(1, 1))
	assert.Equal(t, at(0, 3), right.GetUCharAt(1, 4))

	narrow, err := NewFaceQualityClient(config.NewFaceAlignmentParams(6, 10, 10, 1, false))
	require.NoError(t, err)
	empty := narrow.padForDirection(gray, config.FaceDirectionStraight)
	defer empty.Close()
	assert.True(t, empty.Empty())
}

func TestFaceQualityClient_Laplacian(t *testing.T) {
	client, err := NewFaceQualityClient(nil)
	require.NoError(t, err)

	// single bright pixel in the middle of a 5x5 padded block
	values := make([]byte, 25)
	values[12] = 10
	padded, err := gocv.NewMatFromBytes(5, 5, gocv.MatTypeCV8U, values)
	require.NoError(t, err)
	defer padded.Close()

	response := client.laplacian(padded)
	require.Len(t, response, 9)
	assert.Equal(t, []float64{0, 10, 0, 10, -40, 10, 0, 10, 0}, response)
}
