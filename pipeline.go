package go_face_alignment

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/okieraised/go-face-alignment/config"
	"github.com/okieraised/go-face-alignment/logger"
	"github.com/okieraised/go-face-alignment/modules"
	"github.com/okieraised/go-face-alignment/utils"
	gotritonclient "github.com/okieraised/go-triton-client"
	"gocv.io/x/gocv"
	"golang.org/x/sync/errgroup"
	"gorgonia.org/tensor"
)

// FaceAlignmentPipeline defines the structure of the face alignment pipeline
type FaceAlignmentPipeline struct {
	FaceAlignment *modules.FaceAlignmentClient
	FaceQuality   *modules.FaceQualityClient
	FaceEmbedding *modules.FaceEmbeddingClient
	Params        *config.FaceAlignmentParams
	FaceIDFunc    modules.FaceIDFunc
}

// AlignedFace is the outcome of aligning one detection. Face must be closed by the caller.
type AlignedFace struct {
	Face      gocv.Mat
	Tensor    *tensor.Dense
	Alignment config.AlignmentResult
	Direction config.FaceDirection
	BlurValue float32
}

// NewFaceAlignmentPipeline initializes a new pipeline. The embedding client is only set up
// when a triton client is given.
func NewFaceAlignmentPipeline(params *config.FaceAlignmentParams, tritonClient *gotritonclient.TritonGRPCClient) (*FaceAlignmentPipeline, error) {
	if params == nil {
		params = config.DefaultFaceAlignmentParams
	}

	pipeline := &FaceAlignmentPipeline{
		Params:     params,
		FaceIDFunc: modules.DefaultFaceID,
	}

	// Init face alignment client
	faceAlignmentClient, err := modules.NewFaceAlignmentClient(params, nil)
	if err != nil {
		return pipeline, err
	}
	pipeline.FaceAlignment = faceAlignmentClient

	// Init face quality client
	faceQualityClient, err := modules.NewFaceQualityClient(params)
	if err != nil {
		return pipeline, err
	}
	pipeline.FaceQuality = faceQualityClient

	// Init face embedding client
	if tritonClient != nil {
		faceEmbeddingClient, err := modules.NewFaceEmbeddingClient(tritonClient, config.DefaultFaceEmbeddingParams)
		if err != nil {
			return pipeline, err
		}
		pipeline.FaceEmbedding = faceEmbeddingClient
	}

	return pipeline, nil
}

/*
AlignDetection aligns one detection of the source image.
Inputs:

  - source (gocv.Mat): CV_8UC3 RGB source image.
  - width, height (int): source image dimensions.
  - detection (*config.FaceDetection): detector output in relative coordinates.

Outputs:

  - aligned (*AlignedFace): warped face, network tensor, transform, direction and blur score.
*/
func (c *FaceAlignmentPipeline) AlignDetection(source gocv.Mat, width, height int, detection *config.FaceDetection) (*AlignedFace, error) {
	landmark := modules.ToAbsoluteLandmarks(detection, width, height)

	alignment, err := c.FaceAlignment.EstimateSimilarityTransform(landmark)
	if err != nil {
		return nil, err
	}

	face, err := c.FaceAlignment.WarpFace(source, alignment.AffineMatrix)
	if err != nil {
		face.Close()
		return nil, err
	}

	faceTensor, err := c.FaceAlignment.NormalizeFace(face)
	if err != nil {
		face.Close()
		return nil, err
	}

	direction := modules.ClassifyFaceDirection(landmark)
	blur, err := c.FaceQuality.ComputeBlur(face, direction)
	if err != nil {
		face.Close()
		return nil, err
	}

	return &AlignedFace{
		Face:      face,
		Tensor:    faceTensor,
		Alignment: alignment,
		Direction: direction,
		BlurValue: blur,
	}, nil
}

/*
RunFaceAlignment aligns every detection of a decoded image.
Inputs:

  - ctx (context.Context): checked before every detection.
  - fileID (int64): image identifier used for the face ids.
  - decoded (*config.DecodedImage): packed RGB source image.
  - detections ([]config.FaceDetection): detector output.

Outputs:

  - tensors ([]*tensor.Dense): one (112,112,3) tensor per detection, nil for failed detections.
  - results ([]*config.FaceResult): one result per detection, in input order.

A failed detection only sets its FaceResult.Err, unless AbortOnFailure is set. Errors on
the source image itself always abort.
*/
func (c *FaceAlignmentPipeline) RunFaceAlignment(ctx context.Context, fileID int64, decoded *config.DecodedImage, detections []config.FaceDetection) ([]*tensor.Dense, []*config.FaceResult, error) {
	runID := logger.NewRunID()

	source, err := utils.DecodedImageToMat(decoded)
	defer source.Close()
	if err != nil {
		logger.Error(logger.Fields{logger.RunIDKey: runID, logger.FileIDKey: fileID, "error": err.Error()}, "[RunFaceAlignment] failed to build source image")
		return nil, nil, err
	}

	faceID := c.FaceIDFunc
	if faceID == nil {
		faceID = modules.DefaultFaceID
	}

	width, height := decoded.Dimensions.Width, decoded.Dimensions.Height
	tensors := make([]*tensor.Dense, len(detections))
	results := make([]*config.FaceResult, len(detections))

	process := func(ctx context.Context, idx int) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		detection := detections[idx]
		result := &config.FaceResult{
			Detection: detection,
			FaceID:    faceID(fileID, detection.BoxXYXY),
		}

		aligned, err := c.AlignDetection(source, width, height, &detection)
		if err != nil {
			if c.Params.AbortOnFailure || errors.Is(err, config.ErrPreprocess) {
				return fmt.Errorf("detection %d: %w", idx, err)
			}
			logger.Warn(logger.Fields{
				logger.RunIDKey:  runID,
				logger.FileIDKey: fileID,
				"detection":      idx,
				"kind":           config.KindOf(err).String(),
				"error":          err.Error(),
			}, "[RunFaceAlignment] skipping detection")
			result.Err = err
			results[idx] = result
			return nil
		}
		aligned.Face.Close()

		result.Alignment = aligned.Alignment
		result.Direction = aligned.Direction
		result.BlurValue = aligned.BlurValue
		tensors[idx] = aligned.Tensor
		results[idx] = result
		return nil
	}

	if c.Params.Concurrency <= 1 {
		for idx := range detections {
			if err := process(ctx, idx); err != nil {
				return nil, nil, err
			}
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(c.Params.Concurrency)
		for idx := range detections {
			g.Go(func() error {
				return process(gctx, idx)
			})
		}
		if err := g.Wait(); err != nil {
			return nil, nil, err
		}
	}

	failed := 0
	for _, result := range results {
		if result.Err != nil {
			failed++
		}
	}
	logger.Debug(logger.Fields{
		logger.RunIDKey:  runID,
		logger.FileIDKey: fileID,
		"detections":     len(detections),
		"failed":         failed,
	}, "[RunFaceAlignment] aligned faces")

	return tensors, results, nil
}

// ExtractEmbeddings fills the Embedding of every successfully aligned result through the
// embedding client.
func (c *FaceAlignmentPipeline) ExtractEmbeddings(tensors []*tensor.Dense, results []*config.FaceResult) error {
	if c.FaceEmbedding == nil {
		return fmt.Errorf("face embedding client is not configured")
	}
	if len(tensors) != len(results) {
		return fmt.Errorf("got %d tensors for %d results", len(tensors), len(results))
	}

	indices := make([]int, 0, len(tensors))
	batch := make([]*tensor.Dense, 0, len(tensors))
	for idx, t := range tensors {
		if t == nil || results[idx].Err != nil {
			continue
		}
		indices = append(indices, idx)
		batch = append(batch, t)
	}
	if len(batch) == 0 {
		return nil
	}

	embeddings, err := c.FaceEmbedding.InferBatch(batch, utils.RefPointer(true))
	if err != nil {
		return err
	}
	for i, idx := range indices {
		results[idx].Embedding = embeddings[i]
	}
	return nil
}

// SimilarityScore computes the cosine similarity of two embeddings.
func SimilarityScore(a, b []float32) (float32, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vectors must have the same length")
	}

	var dotProduct, normA, normB float64
	for i := 0; i < len(a); i++ {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	normA = math.Sqrt(normA)
	normB = math.Sqrt(normB)
	if normA == 0 || normB == 0 {
		return 0, fmt.Errorf("zero vector encountered")
	}

	return float32(dotProduct / (normA * normB)), nil
}
