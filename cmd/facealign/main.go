package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	jsoniter "github.com/json-iterator/go"
	facealignment "github.com/okieraised/go-face-alignment"
	"github.com/okieraised/go-face-alignment/config"
	"github.com/okieraised/go-face-alignment/logger"
	"github.com/okieraised/go-face-alignment/utils"
	gotritonclient "github.com/okieraised/go-triton-client"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type faceOutput struct {
	*config.FaceResult
	Error   string `json:"error,omitempty"`
	Preview string `json:"preview,omitempty"`
}

func main() {
	imagePath := flag.String("image", "", "encoded input image (jpeg, png, ...)")
	detectionsPath := flag.String("detections", "", "JSON file with the detector output")
	outDir := flag.String("out", "", "output directory, defaults to $OUTPUT_DIR or ./output")
	fileID := flag.Int64("file-id", 0, "numeric id of the image, used in face ids")
	concurrency := flag.Int("concurrency", 1, "detections aligned in parallel")
	abort := flag.Bool("abort-on-failure", false, "stop at the first detection that cannot be aligned")
	flag.Parse()

	log := logger.NewLogger()
	if err := godotenv.Load(); err != nil {
		log.Debugf("no .env file loaded: %v", err)
	}

	if *imagePath == "" || *detectionsPath == "" {
		flag.Usage()
		os.Exit(2)
	}
	if *outDir == "" {
		*outDir = os.Getenv("OUTPUT_DIR")
		if *outDir == "" {
			*outDir = "./output"
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *imagePath, *detectionsPath, *outDir, *fileID, *concurrency, *abort); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, imagePath, detectionsPath, outDir string, fileID int64, concurrency int, abort bool) error {
	content, err := os.ReadFile(imagePath)
	if err != nil {
		return err
	}
	source, err := utils.ConvertImageToMat(content)
	defer source.Close()
	if err != nil {
		return fmt.Errorf("failed to decode %s: %w", imagePath, err)
	}
	decoded, err := utils.MatToDecodedImage(*source)
	if err != nil {
		return err
	}

	rawDetections, err := os.ReadFile(detectionsPath)
	if err != nil {
		return err
	}
	var detections []config.FaceDetection
	if err := json.Unmarshal(rawDetections, &detections); err != nil {
		return fmt.Errorf("failed to parse detections: %w", err)
	}

	var tritonClient *gotritonclient.TritonGRPCClient
	if tritonURL := os.Getenv("TRITON_URL"); tritonURL != "" {
		tritonClient, err = gotritonclient.NewTritonGRPCClient(
			tritonURL,
			grpc.WithTransportCredentials(insecure.NewCredentials()),
			grpc.WithKeepaliveParams(keepalive.ClientParameters{PermitWithoutStream: true}),
		)
		if err != nil {
			return err
		}
	}

	params := config.NewFaceAlignmentParams(config.RemoveSideColumns, config.LaplacianHardThreshold, config.LaplacianHardThreshold, concurrency, abort)
	pipeline, err := facealignment.NewFaceAlignmentPipeline(params, tritonClient)
	if err != nil {
		return err
	}

	tensors, results, err := pipeline.RunFaceAlignment(ctx, fileID, decoded, detections)
	if err != nil {
		return err
	}
	if pipeline.FaceEmbedding != nil {
		if err := pipeline.ExtractEmbeddings(tensors, results); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}

	outputs := make([]faceOutput, 0, len(results))
	for _, result := range results {
		output := faceOutput{FaceResult: result}
		if result.Err != nil {
			output.Error = result.Err.Error()
			outputs = append(outputs, output)
			continue
		}

		face, err := pipeline.FaceAlignment.WarpFace(*source, result.Alignment.AffineMatrix)
		if err != nil {
			face.Close()
			return err
		}
		output.Preview = filepath.Join(outDir, result.FaceID+".jpg")
		err = utils.OpenCVImageToJPEG(output.Preview, 95, face)
		face.Close()
		if err != nil {
			return err
		}

		logger.Info(logger.Fields{
			"face_id":   result.FaceID,
			"direction": result.Direction.String(),
			"blur":      result.BlurValue,
			"blurry":    result.IsBlurry(params.BlurThreshold),
		}, "aligned face")
		outputs = append(outputs, output)
	}

	encoded, err := json.MarshalIndent(outputs, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(outDir, "results.json"), encoded, 0o644)
}
