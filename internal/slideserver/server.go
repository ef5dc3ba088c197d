// Package slideserver serves IFE slides over HTTP: single byte ranges with
// 206 responses for the remote decoding backend, and JSON endpoints exposing
// the slide abstraction and file map.
package slideserver

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/labstack/echo/v5"
	"github.com/zeebo/blake3"
	"golang.org/x/time/rate"

	"github.com/irisdigital/ife/internal/logger"
	"github.com/irisdigital/ife/internal/slidefile"
	"github.com/irisdigital/ife/pkg/ife"
)

// Server exposes a directory of .iris slides.
type Server struct {
	dir     string
	log     logger.Logger
	limiter *rate.Limiter
}

// New creates a server over the given slide directory. A non-positive rps
// disables rate limiting.
func New(dir string, log logger.Logger, rps float64) *Server {
	var limiter *rate.Limiter
	if rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), int(rps)+1)
	}
	if log == nil {
		log = logger.Default()
	}
	return &Server{dir: dir, log: log, limiter: limiter}
}

// Register wires the routes and middleware into the echo instance.
func (s *Server) Register(e *echo.Echo) {
	e.Use(s.requestID)
	e.GET("/healthz", s.handleHealth)
	e.GET("/v1/slides", s.handleList)
	e.GET("/v1/slides/:name", s.handleSlide)
	e.GET("/v1/slides/:name/info", s.handleInfo)
	e.GET("/v1/slides/:name/map", s.handleMap)
}

// requestID tags each request with a UUID and logs its outcome.
func (s *Server) requestID(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c *echo.Context) error {
		id := uuid.NewString()
		c.Response().Header().Set("X-Request-ID", id)
		err := next(c)
		s.log.Info("request",
			"id", id,
			"method", c.Request().Method,
			"path", c.Request().URL.Path,
			"status", c.Response().(*echo.Response).Status)
		return err
	}
}

func (s *Server) handleHealth(c *echo.Context) error {
	return writeJSON(c, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleList(c *echo.Context) error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return writeErr(c, http.StatusInternalServerError, err.Error())
	}
	slides := make([]slideListing, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".iris") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		slides = append(slides, slideListing{Name: entry.Name(), Size: uint64(info.Size())})
	}
	return writeJSON(c, http.StatusOK, slideList{Slides: slides})
}

// handleSlide serves slide bytes. A single "bytes=a-b" range returns 206
// with a Content-Range header, the contract ife.RemoteRegion expects; no
// Range header returns the whole file.
func (s *Server) handleSlide(c *echo.Context) error {
	if s.limiter != nil && !s.limiter.Allow() {
		return writeErr(c, http.StatusTooManyRequests, "slide request rate exceeded")
	}
	f, err := s.open(c.Param("name"))
	if err != nil {
		return writeErr(c, http.StatusNotFound, err.Error())
	}
	defer f.Close()
	data := f.Bytes()

	c.Response().Header().Set("Accept-Ranges", "bytes")
	c.Response().Header().Set("ETag", headerETag(data))

	spec := c.Request().Header.Get("Range")
	if spec == "" {
		return c.Blob(http.StatusOK, "application/octet-stream", data)
	}
	start, end, err := parseRange(spec, uint64(len(data)))
	if err != nil {
		c.Response().Header().Set("Content-Range", fmt.Sprintf("bytes */%d", len(data)))
		return writeErr(c, http.StatusRequestedRangeNotSatisfiable, err.Error())
	}
	c.Response().Header().Set("Content-Range",
		fmt.Sprintf("bytes %d-%d/%d", start, end, len(data)))
	return c.Blob(http.StatusPartialContent, "application/octet-stream", data[start:end+1])
}

func (s *Server) handleInfo(c *echo.Context) error {
	f, err := s.open(c.Param("name"))
	if err != nil {
		return writeErr(c, http.StatusNotFound, err.Error())
	}
	defer f.Close()

	if !ife.IsIrisFile(f.Region()) {
		return writeErr(c, http.StatusUnprocessableEntity, "not an Iris file")
	}
	file, err := ife.AbstractFileStructure(f.Region())
	if err != nil {
		return writeErr(c, http.StatusUnprocessableEntity, err.Error())
	}
	return writeJSON(c, http.StatusOK, InfoFromFile(c.Param("name"), file))
}

func (s *Server) handleMap(c *echo.Context) error {
	f, err := s.open(c.Param("name"))
	if err != nil {
		return writeErr(c, http.StatusNotFound, err.Error())
	}
	defer f.Close()

	m, err := ife.GenerateFileMap(f.Region())
	if err != nil {
		return writeErr(c, http.StatusUnprocessableEntity, err.Error())
	}
	return writeJSON(c, http.StatusOK, fileMapFrom(m))
}

// open resolves a slide name inside the serving directory, rejecting path
// escapes.
func (s *Server) open(name string) (*slidefile.File, error) {
	if name == "" || strings.ContainsAny(name, "/\\") || name != filepath.Base(name) {
		return nil, errors.New("invalid slide name")
	}
	return slidefile.Open(filepath.Join(s.dir, name))
}

// headerETag derives a strong ETag from the file header block, which carries
// the revision counter and so changes with every committed update.
func headerETag(data []byte) string {
	n := int(ife.HeaderSize())
	if len(data) < n {
		n = len(data)
	}
	sum := blake3.Sum256(data[:n])
	return fmt.Sprintf("%q", fmt.Sprintf("%x", sum[:16]))
}

// parseRange parses a single "bytes=a-b" specifier against the file size.
func parseRange(spec string, size uint64) (start, end uint64, err error) {
	if !strings.HasPrefix(spec, "bytes=") {
		return 0, 0, errors.New("unsupported range unit")
	}
	parts := strings.SplitN(strings.TrimPrefix(spec, "bytes="), "-", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return 0, 0, errors.New("unsupported range specifier")
	}
	start, err = strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return 0, 0, err
	}
	end, err = strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return 0, 0, err
	}
	if start > end || end >= size {
		return 0, 0, fmt.Errorf("range %d-%d outside %d byte slide", start, end, size)
	}
	return start, end, nil
}

func writeJSON(c *echo.Context, status int, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Blob(status, "application/json", body)
}

func writeErr(c *echo.Context, status int, msg string) error {
	return writeJSON(c, status, map[string]string{"error": msg})
}
