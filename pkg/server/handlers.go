package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/hed-standard/hed-lsp/pkg/common/errors"
	"github.com/hed-standard/hed-lsp/pkg/diagnostics"
	"github.com/hed-standard/hed-lsp/pkg/schema"
)

const (
	defaultTagLimit = 50
	maxTagLimit     = 500
)

// TagInfo describes one vocabulary tag.
type TagInfo struct {
	Name        string   `json:"name"`
	LongForm    string   `json:"longForm"`
	Description string   `json:"description,omitempty"`
	Parent      string   `json:"parent,omitempty"`
	TakesValue  bool     `json:"takesValue,omitempty"`
	Extensible  bool     `json:"extensionAllowed,omitempty"`
	UnitClass   []string `json:"unitClass,omitempty"`
}

func tagInfo(t *schema.TagEntry) TagInfo {
	return TagInfo{
		Name:        t.QualifiedName(),
		LongForm:    t.LongForm,
		Description: t.Description,
		Parent:      t.Parent,
		TakesValue:  t.Attributes.TakesValue,
		Extensible:  t.Attributes.ExtensionAllowed,
		UnitClass:   t.Attributes.UnitClass,
	}
}

// handleComplete returns completion candidates for a HED string and cursor
// offset.
func (s *Server) handleComplete(c *gin.Context) {
	var req struct {
		HED     string `json:"hed"`
		Offset  *int   `json:"offset"`
		Version string `json:"version"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		handleError(c, errors.NewAppError(http.StatusBadRequest, "Invalid request body", err))
		return
	}
	offset := len(req.HED)
	if req.Offset != nil {
		offset = *req.Offset
	}

	candidates, err := s.session.CompleteString(c.Request.Context(), req.Version, req.HED, offset)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"candidates": candidates})
}

// handleValidate validates either a HED string or a whole document. A
// document is identified by its path, which selects the format and the
// dataset descriptor.
func (s *Server) handleValidate(c *gin.Context) {
	var req struct {
		HED     string `json:"hed"`
		Version string `json:"version"`
		Path    string `json:"path"`
		Text    string `json:"text"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		handleError(c, errors.NewAppError(http.StatusBadRequest, "Invalid request body", err))
		return
	}

	var (
		diags []diagnostics.Diagnostic
		err   error
	)
	switch {
	case req.Path != "":
		diags = s.session.ValidateText(c.Request.Context(), req.Path, req.Text)
	case strings.TrimSpace(req.HED) != "":
		diags, err = s.session.ValidateString(c.Request.Context(), req.Version, req.HED)
	default:
		handleError(c, errors.NewAppError(http.StatusBadRequest, "Missing hed or path", nil))
		return
	}
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"diagnostics": diags})
}

// handleSemantic ranks tags for a free-text query.
func (s *Server) handleSemantic(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		handleError(c, errors.NewAppError(http.StatusBadRequest, "Missing q parameter", nil))
		return
	}

	matches, err := s.session.Search(c.Request.Context(), query)
	if err != nil {
		handleError(c, err)
		return
	}
	if matches == nil {
		c.JSON(http.StatusOK, gin.H{"matches": []any{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"matches": matches})
}

// handleTags lists tags. With ?prefix= it searches short forms, otherwise
// it lists the top-level tags of ?namespace= (the base namespace by default).
func (s *Server) handleTags(c *gin.Context) {
	vocab, err := s.session.Vocabulary(c.Request.Context(), c.Query("version"))
	if err != nil {
		handleError(c, err)
		return
	}

	limit := defaultTagLimit
	if l, err := strconv.Atoi(c.Query("limit")); err == nil && l > 0 {
		limit = min(l, maxTagLimit)
	}

	var tags []*schema.TagEntry
	if prefix := c.Query("prefix"); prefix != "" {
		tags = vocab.SearchByPrefix(prefix)
	} else {
		tags = vocab.TopLevelTags(c.Query("namespace"))
	}
	if len(tags) > limit {
		tags = tags[:limit]
	}

	out := make([]TagInfo, len(tags))
	for i, t := range tags {
		out[i] = tagInfo(t)
	}
	c.JSON(http.StatusOK, gin.H{"version": vocab.Spec.String(), "tags": out})
}

// handleTag describes one tag with its children. Unknown names return 404
// with the closest known tags.
func (s *Server) handleTag(c *gin.Context) {
	vocab, err := s.session.Vocabulary(c.Request.Context(), c.Query("version"))
	if err != nil {
		handleError(c, err)
		return
	}

	name := c.Param("name")
	tag := vocab.FindTag(name)
	if tag == nil {
		var suggestions []string
		for _, t := range vocab.ClosestTags(name, 3) {
			suggestions = append(suggestions, t.QualifiedName())
		}
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown tag", "suggestions": suggestions})
		return
	}

	children := []TagInfo{}
	for _, child := range vocab.ChildTags(tag.QualifiedName()) {
		if child.IsValueNode() {
			continue
		}
		children = append(children, tagInfo(child))
	}
	c.JSON(http.StatusOK, gin.H{"tag": tagInfo(tag), "children": children})
}

// handleError helper
func handleError(c *gin.Context, err error) {
	appErr := errors.MapError(err)
	c.JSON(appErr.Code, gin.H{"error": appErr.Message})
}
