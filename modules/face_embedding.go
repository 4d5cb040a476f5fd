package modules

import (
	"fmt"

	"github.com/okieraised/go-face-alignment/config"
	"github.com/okieraised/go-face-alignment/utils"
	gotritonclient "github.com/okieraised/go-triton-client"
	"github.com/okieraised/go-triton-client/triton_proto"
	"gorgonia.org/tensor"
)

// FaceEmbeddingClient sends normalized face tensors to the embedding model served by Triton.
type FaceEmbeddingClient struct {
	tritonClient *gotritonclient.TritonGRPCClient
	ModelParams  *config.FaceEmbeddingParams
	ModelConfig  *triton_proto.ModelConfigResponse
}

func NewFaceEmbeddingClient(triton *gotritonclient.TritonGRPCClient, cfg *config.FaceEmbeddingParams) (*FaceEmbeddingClient, error) {
	if cfg == nil {
		cfg = config.DefaultFaceEmbeddingParams
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	inferenceConfig, err := triton.GetModelConfiguration(cfg.Timeout, cfg.ModelName, "")
	if err != nil {
		return nil, err
	}

	return &FaceEmbeddingClient{
		tritonClient: triton,
		ModelParams:  cfg,
		ModelConfig:  inferenceConfig,
	}, nil
}

// preprocessBatch stacks (S,S,3) face tensors into a single (N,S,S,3) batch.
func (c *FaceEmbeddingClient) preprocessBatch(faces []*tensor.Dense) (*tensor.Dense, error) {
	if len(faces) == 0 {
		return nil, fmt.Errorf("no face tensors to embed")
	}

	imgSize := c.ModelParams.ImgSize
	faceLen := imgSize * imgSize * 3
	backing := make([]float32, 0, len(faces)*faceLen)
	for idx, face := range faces {
		if face == nil {
			return nil, fmt.Errorf("face tensor %d is nil", idx)
		}
		shape := face.Shape()
		if len(shape) != 3 || shape[0] != imgSize || shape[1] != imgSize || shape[2] != 3 {
			return nil, fmt.Errorf("expected face tensor %d with shape (%d, %d, 3), got shape: %v", idx, imgSize, imgSize, shape)
		}
		backing = append(backing, face.Float32s()...)
	}

	return tensor.New(
		tensor.Of(tensor.Float32),
		tensor.WithShape(len(faces), imgSize, imgSize, 3),
		tensor.WithBacking(backing),
	), nil
}

func (c *FaceEmbeddingClient) buildInferRequest(batch *tensor.Dense) *triton_proto.ModelInferRequest {
	modelRequest := &triton_proto.ModelInferRequest{
		ModelName: c.ModelParams.ModelName,
	}

	inputShapes := make([]int64, 0, len(batch.Shape()))
	for _, s := range batch.Shape() {
		inputShapes = append(inputShapes, int64(s))
	}

	modelInputs := make([]*triton_proto.ModelInferRequest_InferInputTensor, 0)
	for _, inputCfg := range c.ModelConfig.Config.Input {
		modelInput := &triton_proto.ModelInferRequest_InferInputTensor{
			Name:     inputCfg.Name,
			Datatype: inputCfg.DataType.String()[5:],
			Shape:    inputShapes,
			Contents: &triton_proto.InferTensorContents{
				Fp32Contents: batch.Float32s(),
			},
		}
		modelInputs = append(modelInputs, modelInput)
	}
	modelRequest.Inputs = modelInputs

	return modelRequest
}

// postprocessBatch splits the first raw output into one embedding per face.
func (c *FaceEmbeddingClient) postprocessBatch(inferResp *triton_proto.ModelInferResponse, batchSize int, normalize bool) ([][]float32, error) {
	if len(inferResp.GetRawOutputContents()) == 0 {
		return nil, fmt.Errorf("model %s returned no output", c.ModelParams.ModelName)
	}

	content := utils.BytesToT32[float32](inferResp.GetRawOutputContents()[0])
	expected := batchSize * c.ModelParams.EmbeddingSize
	if len(content) != expected {
		return nil, fmt.Errorf("expected %d output values for %d faces, got %d", expected, batchSize, len(content))
	}

	embeddings := make([][]float32, batchSize)
	for idx := range batchSize {
		embedding := make([]float32, c.ModelParams.EmbeddingSize)
		copy(embedding, content[idx*c.ModelParams.EmbeddingSize:(idx+1)*c.ModelParams.EmbeddingSize])
		if normalize {
			if err := utils.L2Normalize(embedding); err != nil {
				return nil, fmt.Errorf("face %d: %w", idx, err)
			}
		}
		embeddings[idx] = embedding
	}
	return embeddings, nil
}

// InferBatch embeds the normalized face tensors, in input order.
//
// Inputs:
//
//   - faces ([]*tensor.Dense): (S,S,3) tensors from FaceAlignmentClient.NormalizeFace.
//   - normalize (*bool): L2-normalize every embedding, defaults to true.
//
// Outputs:
//
//   - embeddings ([][]float32): one EmbeddingSize vector per face.
func (c *FaceEmbeddingClient) InferBatch(faces []*tensor.Dense, normalize *bool) ([][]float32, error) {
	batch, err := c.preprocessBatch(faces)
	if err != nil {
		return nil, err
	}

	inferResp, err := c.tritonClient.ModelGRPCInfer(c.ModelParams.Timeout, c.buildInferRequest(batch))
	if err != nil {
		return nil, err
	}

	return c.postprocessBatch(inferResp, len(faces), utils.DerefPointer(normalize, true))
}
