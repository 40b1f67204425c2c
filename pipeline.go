package centerline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Converter orchestrates the conversion pipeline: unwrap → extract →
// normalize → export. Each call is independent and side-effect-free with
// respect to any other; the only shared state is the optional job store and
// uploader.
type Converter struct {
	db *Database
	s3 *S3Client
}

// NewConverter creates a new converter. db and s3 may be nil: job history
// and artifact uploads are skipped when absent.
func NewConverter(db *Database, s3 *S3Client) *Converter {
	return &Converter{
		db: db,
		s3: s3,
	}
}

// Convert runs the full pipeline for one upload. The request's options are
// taken as-is apart from two fallbacks: an empty format list means CSV+TXT,
// and an empty base name means "Centerline".
func (c *Converter) Convert(ctx context.Context, req ConvertRequest) (*ConvertResult, error) {
	opts := req.Options
	if len(opts.Formats) == 0 {
		opts.Formats = []OutputFormat{OutputCSV, OutputTXT}
	}
	if opts.BaseName == "" {
		opts.BaseName = "Centerline"
	}

	jobID := uuid.New().String()
	logger := slog.With(
		"job_id", jobID,
		"filename", req.Filename,
		"mode", opts.Mode.String(),
		"profile", opts.Profile.String(),
	)

	if c.db != nil {
		job := &ConversionJob{
			ID:        jobID,
			Filename:  req.Filename,
			Mode:      opts.Mode.String(),
			Profile:   opts.Profile.String(),
			Status:    "processing",
			CreatedAt: time.Now().UTC(),
		}
		if err := c.db.CreateJob(ctx, job); err != nil {
			logger.Warn("failed to record job", "error", err)
		}
	}

	result, err := c.run(ctx, req, opts, jobID, logger)
	if err != nil {
		recordConversion(opts.Mode, opts.Profile, "failed")
		if c.db != nil {
			if dbErr := c.db.FailJob(ctx, jobID, err.Error()); dbErr != nil {
				logger.Warn("failed to mark job failed", "error", dbErr)
			}
		}
		return nil, err
	}

	recordConversion(opts.Mode, opts.Profile, "completed")
	if c.db != nil {
		if dbErr := c.db.CompleteJob(ctx, jobID,
			result.Stats.Segments, result.Stats.Coordinates, len(result.Artifacts)); dbErr != nil {
			logger.Warn("failed to mark job complete", "error", dbErr)
		}
	}

	logger.Info("conversion complete",
		"segments", result.Stats.Segments,
		"coordinates", result.Stats.Coordinates,
		"artifacts", len(result.Artifacts),
	)
	return result, nil
}

func (c *Converter) run(ctx context.Context, req ConvertRequest, opts VariantOptions, jobID string, logger *slog.Logger) (*ConvertResult, error) {
	// Phase 1: unwrap container
	kml, err := UnwrapDocument(req.Data, req.Filename)
	if err != nil {
		return nil, fmt.Errorf("failed to unwrap document: %w", err)
	}

	// Phase 2: locate geometry
	nodes, err := ExtractGeometry(kml, opts.Mode)
	if err != nil {
		return nil, fmt.Errorf("failed to extract geometry: %w", err)
	}

	// Phase 3: normalize coordinates
	segments, warnings, dropped := Normalize(nodes, opts.Normalize)

	coordinates := 0
	for _, seg := range segments {
		coordinates += len(seg.Points)
	}
	if coordinates == 0 {
		return nil, ErrNoGeometry
	}
	coordinatesExtracted.Add(float64(coordinates))

	stats := ConvertStats{
		NodesMatched:  len(nodes),
		Coordinates:   coordinates,
		Segments:      len(segments),
		DroppedTokens: dropped,
	}
	logger.Debug("pipeline stages complete",
		"nodes", stats.NodesMatched,
		"segments", stats.Segments,
		"coordinates", stats.Coordinates,
		"dropped_tokens", stats.DroppedTokens,
	)

	// Phase 4: render artifacts
	artifacts, err := renderArtifacts(segments, opts)
	if err != nil {
		return nil, err
	}

	result := &ConvertResult{
		JobID:     jobID,
		Segments:  segments,
		Artifacts: artifacts,
		Warnings:  warnings,
		Stats:     stats,
	}

	// Phase 5: upload artifacts (optional)
	if opts.Upload && c.s3 != nil {
		for _, a := range result.Artifacts {
			key := c.s3.ArtifactKey(jobID, a.Name)
			up, err := c.s3.UploadArtifact(ctx, key, a)
			if err != nil {
				return nil, fmt.Errorf("failed to upload artifacts: %w", err)
			}
			result.Uploads = append(result.Uploads, *up)
		}
		logger.Info("artifacts uploaded", "count", len(result.Uploads))
	}

	return result, nil
}

// renderArtifacts renders one artifact per requested format, plus the zip
// bundle when asked for. The bundle wraps the individual artifacts and is
// appended last.
func renderArtifacts(segments []Segment, opts VariantOptions) ([]Artifact, error) {
	var artifacts []Artifact

	for _, format := range opts.Formats {
		switch format {
		case OutputCSV:
			data, err := RenderCSV(segments, opts.Profile)
			if err != nil {
				return nil, err
			}
			artifacts = append(artifacts, Artifact{
				Name:        opts.BaseName + ".csv",
				ContentType: "text/csv",
				Data:        data,
			})
		case OutputTXT:
			artifacts = append(artifacts, Artifact{
				Name:        opts.BaseName + ".txt",
				ContentType: "text/plain",
				Data:        RenderTXT(segments, opts.Profile),
			})
		case OutputGeoJSON:
			data, err := RenderGeoJSON(segments)
			if err != nil {
				return nil, err
			}
			artifacts = append(artifacts, Artifact{
				Name:        opts.BaseName + ".geojson",
				ContentType: "application/geo+json",
				Data:        data,
			})
		default:
			return nil, fmt.Errorf("unknown output format %q", format)
		}
	}

	if opts.Bundle {
		data, err := BuildBundle(artifacts)
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, Artifact{
			Name:        opts.BaseName + ".zip",
			ContentType: "application/zip",
			Data:        data,
		})
	}

	return artifacts, nil
}
