package centerline

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

// Server wraps the HTTP surface: upload form, conversion endpoint, job
// history, health, and metrics.
type Server struct {
	app       *fiber.App
	converter *Converter
	config    *Config
}

// NewServer creates the HTTP server around a converter.
func NewServer(converter *Converter, cfg *Config) *Server {
	app := fiber.New(fiber.Config{
		AppName:      ServiceName,
		BodyLimit:    cfg.Server.MaxUploadMB * 1024 * 1024,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	})

	s := &Server{app: app, converter: converter, config: cfg}
	s.setupRoutes()
	return s
}

// App exposes the underlying fiber app, used by tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves until Shutdown is called.
func (s *Server) Listen(addr string) error {
	slog.Info("http server listening", "addr", addr)
	return s.app.Listen(addr)
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown() error {
	return s.app.ShutdownWithTimeout(5 * time.Second)
}

func (s *Server) setupRoutes() {
	s.app.Use(MetricsMiddleware())
	s.app.Get("/metrics", MetricsHandler())

	s.app.Use(requestid.New())
	s.app.Use(recover.New())
	s.app.Use(accessLogMiddleware())

	s.app.Get("/", s.handleIndex)
	s.app.Post("/convert", s.handleConvert)
	s.app.Get("/healthz", s.handleHealth)

	s.app.Get("/api/presets", s.handlePresets)
	s.app.Get("/api/jobs", s.handleRecentJobs)
	s.app.Get("/api/jobs/:id", s.handleGetJob)
}

// accessLogMiddleware writes one structured log line per request.
func accessLogMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		reqID, _ := c.Locals("requestid").(string)
		slog.Info("http request",
			"method", c.Method(),
			"path", c.Path(),
			"status", c.Response().StatusCode(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", reqID,
		)
		return err
	}
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"service": ServiceName,
		"version": Version,
	})
}

func (s *Server) handleIndex(c *fiber.Ctx) error {
	c.Type("html", "utf-8")
	return c.SendString(uploadPage())
}

func (s *Server) handlePresets(c *fiber.Ctx) error {
	type presetView struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Mode        string `json:"mode"`
		Profile     string `json:"profile"`
	}

	var out []presetView
	for _, p := range Presets() {
		out = append(out, presetView{
			Name:        p.Name,
			Description: p.Description,
			Mode:        p.Options.Mode.String(),
			Profile:     p.Options.Profile.String(),
		})
	}
	return c.JSON(out)
}

func (s *Server) handleConvert(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return errBadRequest(c, "no file uploaded")
	}

	f, err := fileHeader.Open()
	if err != nil {
		return errBadRequest(c, "could not read uploaded file")
	}
	data := make([]byte, fileHeader.Size)
	if _, err := io.ReadFull(f, data); err != nil {
		f.Close()
		return errBadRequest(c, "could not read uploaded file")
	}
	f.Close()

	opts, err := s.optionsFromForm(c)
	if err != nil {
		return errBadRequest(c, err.Error())
	}

	result, err := s.converter.Convert(c.Context(), ConvertRequest{
		Filename: fileHeader.Filename,
		Data:     data,
		Options:  opts,
	})
	if err != nil {
		return convertErrorResponse(c, err)
	}

	c.Set("X-Conversion-Job", result.JobID)
	c.Set("X-Conversion-Segments", strconv.Itoa(result.Stats.Segments))
	c.Set("X-Conversion-Coordinates", strconv.Itoa(result.Stats.Coordinates))
	if len(result.Warnings) > 0 {
		c.Set("X-Conversion-Warnings", strconv.Itoa(len(result.Warnings)))
	}

	// One artifact streams back directly; multiple artifacts ship as the
	// zip bundle (the pipeline appended it when requested, otherwise build
	// one now for single-download delivery).
	artifact := result.Artifacts[0]
	if len(result.Artifacts) > 1 {
		if opts.Bundle {
			artifact = result.Artifacts[len(result.Artifacts)-1]
		} else {
			bundle, err := BuildBundle(result.Artifacts)
			if err != nil {
				return errInternal(c, err.Error())
			}
			artifact = Artifact{
				Name:        opts.BaseName + ".zip",
				ContentType: "application/zip",
				Data:        bundle,
			}
		}
	}

	c.Set(fiber.HeaderContentType, artifact.ContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", artifact.Name))
	return c.Send(artifact.Data)
}

// optionsFromForm resolves the variant options for one request: the named
// preset (or the configured default) supplies the base, explicit form
// fields override individual members.
func (s *Server) optionsFromForm(c *fiber.Ctx) (VariantOptions, error) {
	presetName := c.FormValue("preset")
	if presetName == "" {
		presetName = s.config.Convert.DefaultPreset
	}
	preset, ok := PresetByName(presetName)
	if !ok {
		return VariantOptions{}, fmt.Errorf("unknown preset %q", presetName)
	}
	opts := preset.Options

	if v := c.FormValue("mode"); v != "" {
		mode, err := ParseSelectionMode(v)
		if err != nil {
			return VariantOptions{}, err
		}
		opts.Mode = mode
	}
	if v := c.FormValue("profile"); v != "" {
		profile, err := ParseExportProfile(v)
		if err != nil {
			return VariantOptions{}, err
		}
		opts.Profile = profile
	}
	if v := c.FormValue("formats"); v != "" {
		formats, err := ParseOutputFormats(v)
		if err != nil {
			return VariantOptions{}, err
		}
		opts.Formats = formats
	}
	if v := c.FormValue("basename"); v != "" {
		opts.BaseName = v
	}

	var err error
	if opts.Normalize.CollapseRuns, err = overrideBool(c, "collapse", opts.Normalize.CollapseRuns); err != nil {
		return VariantOptions{}, err
	}
	if opts.Normalize.TrimClosure, err = overrideBool(c, "trim_closure", opts.Normalize.TrimClosure); err != nil {
		return VariantOptions{}, err
	}
	if opts.Normalize.GlobalDedup, err = overrideBool(c, "global_dedup", opts.Normalize.GlobalDedup); err != nil {
		return VariantOptions{}, err
	}
	if opts.Normalize.PerNodeSegments, err = overrideBool(c, "per_segment", opts.Normalize.PerNodeSegments); err != nil {
		return VariantOptions{}, err
	}
	if opts.Bundle, err = overrideBool(c, "bundle", opts.Bundle); err != nil {
		return VariantOptions{}, err
	}
	if opts.Upload, err = overrideBool(c, "upload", opts.Upload); err != nil {
		return VariantOptions{}, err
	}

	return opts, nil
}

// overrideBool keeps the fallback when the form field is absent.
func overrideBool(c *fiber.Ctx, field string, fallback bool) (bool, error) {
	v := c.FormValue(field)
	if v == "" {
		return fallback, nil
	}
	if v == "on" { // HTML checkbox
		return true, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid boolean for %s: %q", field, v)
	}
	return b, nil
}

func (s *Server) handleGetJob(c *fiber.Ctx) error {
	if s.converter.db == nil {
		return errHistoryDisabled(c)
	}

	job, err := s.converter.db.GetJob(c.Context(), c.Params("id"))
	if err != nil {
		return errNotFound(c, err.Error())
	}
	return c.JSON(job)
}

func (s *Server) handleRecentJobs(c *fiber.Ctx) error {
	if s.converter.db == nil {
		return errHistoryDisabled(c)
	}

	limit := c.QueryInt("limit", 20)
	if limit <= 0 || limit > 200 {
		limit = 20
	}

	jobs, err := s.converter.db.RecentJobs(c.Context(), limit)
	if err != nil {
		return errInternal(c, err.Error())
	}
	if jobs == nil {
		jobs = []*ConversionJob{}
	}
	return c.JSON(jobs)
}

// convertErrorResponse maps pipeline failures onto HTTP statuses. Rejected
// inputs are 400, inputs we understood but could not convert are 422,
// everything else is 500.
func convertErrorResponse(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, ErrUnsupportedFileType):
		return errBadRequest(c, "invalid file type, please upload a KML or KMZ file")
	case errors.Is(err, ErrNoKMLInArchive):
		return errUnprocessable(c, "no_kml_in_archive", "no KML document found in the uploaded KMZ")
	case errors.Is(err, ErrXMLParse):
		return errUnprocessable(c, "xml_parse_failure", "the document could not be parsed as KML")
	case errors.Is(err, ErrNoGeometry):
		return errUnprocessable(c, "no_geometry", "no coordinates matched; nothing to export")
	}
	slog.Error("conversion failed", "error", err)
	return errInternal(c, "conversion failed")
}

// APIError is a structured error response.
type APIError struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// newError builds a JSON error response with a request ID.
func newError(c *fiber.Ctx, status int, code string, message string) error {
	reqID, _ := c.Locals("requestid").(string)
	return c.Status(status).JSON(APIError{
		Status:    status,
		Code:      code,
		Message:   message,
		RequestID: reqID,
	})
}

func errBadRequest(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusBadRequest, "bad_request", msg)
}

func errNotFound(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusNotFound, "not_found", msg)
}

func errUnprocessable(c *fiber.Ctx, code, msg string) error {
	return newError(c, fiber.StatusUnprocessableEntity, code, msg)
}

func errInternal(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusInternalServerError, "internal_error", msg)
}

func errHistoryDisabled(c *fiber.Ctx) error {
	return newError(c, fiber.StatusServiceUnavailable, "history_disabled", "job history requires the database to be configured")
}

// uploadPage renders the upload form with the preset list filled in.
func uploadPage() string {
	var options strings.Builder
	for _, p := range Presets() {
		fmt.Fprintf(&options, "<option value=%q>%s - %s</option>", p.Name, p.Name, p.Description)
	}

	return fmt.Sprintf(uploadPageHTML, options.String())
}

const uploadPageHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <title>Centerline Converter</title>
  <style>
    body { font-family: sans-serif; max-width: 640px; margin: 3em auto; color: #222; }
    fieldset { border: 1px solid #ccc; margin-bottom: 1em; }
    label { display: block; margin: 0.4em 0; }
    button { padding: 0.5em 1.5em; }
  </style>
</head>
<body>
  <h1>Centerline Converter</h1>
  <p>Upload a KML or KMZ file to convert its geometry to DeLorme-style CSV/TXT exports.</p>
  <form action="/convert" method="post" enctype="multipart/form-data">
    <fieldset>
      <legend>Input</legend>
      <label>File: <input type="file" name="file" accept=".kml,.kmz" required></label>
      <label>Preset:
        <select name="preset">%s</select>
      </label>
    </fieldset>
    <fieldset>
      <legend>Overrides (optional)</legend>
      <label>Mode:
        <select name="mode">
          <option value="">preset default</option>
          <option value="any">any coordinates</option>
          <option value="linestring">LineString only</option>
          <option value="placemark-point">Placemark points</option>
        </select>
      </label>
      <label>Profile:
        <select name="profile">
          <option value="">preset default</option>
          <option value="minimal">minimal</option>
          <option value="extended">extended</option>
          <option value="segmented">segmented</option>
        </select>
      </label>
      <label>Formats: <input type="text" name="formats" placeholder="csv,txt,geojson"></label>
      <label><input type="checkbox" name="bundle" value="on"> Bundle outputs into a single zip</label>
    </fieldset>
    <button type="submit">Convert</button>
  </form>
</body>
</html>
`
