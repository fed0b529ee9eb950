package api

import (
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v5"
	"github.com/samcharles93/dtk/internal/logger"
	"github.com/samcharles93/dtk/pkg/dtk"
	"github.com/tidwall/gjson"
)

// Server exposes the containers in one directory over a read-only HTTP API.
type Server struct {
	root   string
	log    logger.Logger
	codecs *dtk.CodecTable
}

// Option customises a Server.
type Option func(*Server)

// WithCodecs sets the codec table used to decode chunks.
func WithCodecs(t *dtk.CodecTable) Option {
	return func(s *Server) { s.codecs = t }
}

// NewServer returns a server for the containers directly under root.
func NewServer(root string, log logger.Logger, opts ...Option) *Server {
	if log == nil {
		log = logger.Discard()
	}
	s := &Server{root: root, log: log, codecs: dtk.DefaultCodecs()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) Register(e *echo.Echo) {
	e.Use(requestID)

	g := e.Group("/v1/containers")
	g.GET("", s.handleList)
	g.GET("/:name", s.handleContainer)
	g.GET("/:name/chunks/:index", s.handleChunk)
	g.GET("/:name/simulation", s.handleSimulation)
	g.GET("/:name/nodes/:node", s.handleNode)
	g.GET("/:name/verify", s.handleVerify)
}

// requestID tags every response with X-Request-Id, keeping a caller supplied
// value when present.
func requestID(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c *echo.Context) error {
		id := c.Request().Header.Get(echo.HeaderXRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Response().Header().Set(echo.HeaderXRequestID, id)
		return next(c)
	}
}

// ContainerEntry is one item of the container listing.
type ContainerEntry struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// ContainerInfo is the header-only view of a container.
type ContainerInfo struct {
	Name     string          `json:"name"`
	Size     int64           `json:"size"`
	Metadata dtk.Metadata    `json:"metadata"`
	Chunks   []dtk.ChunkInfo `json:"chunks"`
}

func (s *Server) handleList(c *echo.Context) error {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return s.writeFailure(c, err)
	}
	out := make([]ContainerEntry, 0, len(entries))
	for _, ent := range entries {
		if !ent.Type().IsRegular() || !strings.EqualFold(filepath.Ext(ent.Name()), ".dtk") {
			continue
		}
		fi, err := ent.Info()
		if err != nil {
			continue
		}
		out = append(out, ContainerEntry{Name: ent.Name(), Size: fi.Size()})
	}
	return c.JSON(http.StatusOK, map[string]any{"containers": out})
}

func (s *Server) open(c *echo.Context) (*dtk.Reader, error) {
	name := c.Param("name")
	if name == "" || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return nil, newInvalidRequest("invalid container name " + strconv.Quote(name))
	}
	return dtk.Open(filepath.Join(s.root, name), dtk.WithReadCodecs(s.codecs))
}

func (s *Server) handleContainer(c *echo.Context) error {
	r, err := s.open(c)
	if err != nil {
		return s.writeFailure(c, err)
	}
	return c.JSON(http.StatusOK, ContainerInfo{
		Name:     c.Param("name"),
		Size:     r.Size(),
		Metadata: r.Metadata(),
		Chunks:   r.Chunks(),
	})
}

func intParam(c *echo.Context, name string) (int, error) {
	v, err := strconv.Atoi(c.Param(name))
	if err != nil {
		return 0, newInvalidRequest(name + " must be an integer")
	}
	return v, nil
}

func (s *Server) handleChunk(c *echo.Context) error {
	r, err := s.open(c)
	if err != nil {
		return s.writeFailure(c, err)
	}
	index, err := intParam(c, "index")
	if err != nil {
		return s.writeFailure(c, err)
	}

	switch form := c.QueryParam("form"); form {
	case "raw":
		b, err := r.Chunk(index)
		if err != nil {
			return s.writeFailure(c, err)
		}
		return c.Blob(http.StatusOK, echo.MIMEOctetStream, b)
	case "", "contents":
		b, err := r.Contents(index)
		if err != nil {
			return s.writeFailure(c, err)
		}
		if gjson.ValidBytes(b) {
			return c.JSONBlob(http.StatusOK, b)
		}
		return c.Blob(http.StatusOK, echo.MIMEOctetStream, b)
	case "object":
		v, err := r.Object(index)
		if err != nil {
			return s.writeFailure(c, err)
		}
		return c.JSON(http.StatusOK, v)
	default:
		return s.writeFailure(c, newInvalidRequest("form must be raw, contents or object, got "+strconv.Quote(form)))
	}
}

func (s *Server) handleSimulation(c *echo.Context) error {
	r, err := s.open(c)
	if err != nil {
		return s.writeFailure(c, err)
	}
	sim, err := r.Simulation()
	if err != nil {
		return s.writeFailure(c, err)
	}
	return c.JSONBlob(http.StatusOK, sim)
}

func (s *Server) handleNode(c *echo.Context) error {
	r, err := s.open(c)
	if err != nil {
		return s.writeFailure(c, err)
	}
	k, err := intParam(c, "node")
	if err != nil {
		return s.writeFailure(c, err)
	}
	node, err := r.Node(k)
	if err != nil {
		return s.writeFailure(c, err)
	}
	return c.JSONBlob(http.StatusOK, node)
}

func (s *Server) handleVerify(c *echo.Context) error {
	r, err := s.open(c)
	if err != nil {
		return s.writeFailure(c, err)
	}
	if err := r.Verify(); err != nil {
		return s.writeFailure(c, err)
	}
	for i := range r.ChunkCount() {
		if _, err := r.Contents(i); err != nil {
			return s.writeFailure(c, err)
		}
	}
	return c.JSON(http.StatusOK, map[string]any{"ok": true, "chunks": r.ChunkCount()})
}
