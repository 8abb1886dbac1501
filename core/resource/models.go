package resource

import (
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/campusmate/core"
)

// Resource types that are not file extensions
const (
	TypeLink    = "link"
	TypeGeneral = "general"
)

// Sort orders
const (
	SortNewest = "newest"
	SortOldest = "oldest"
	SortTitle  = "title"
)

var (
	AllowedExtensions = []string{"pdf", "doc", "docx", "txt", "png", "jpg", "jpeg", "gif"}

	unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)
)

type (
	Resource struct {
		ID          int       `json:"id"`
		Title       string    `json:"title"`
		Description string    `json:"description"`
		URL         string    `json:"url"`
		Filename    string    `json:"filename"`
		StoragePath string    `json:"-"`
		Type        string    `json:"type"`
		ClassID     int       `json:"class_id"`
		UserID      null.Int  `json:"user_id"`
		CreatedAt   time.Time `json:"created_at"`
		Likes       int       `json:"likes"`
		Downloads   int       `json:"downloads"`
	}

	QueryFilter struct {
		ClassIDs []int  `query:"-"`
		ClassID  int    `query:"class_id"`
		Type     string `query:"type"`
		Sort     string `query:"sort" validate:"omitempty,oneof=newest oldest title"`
	}

	// NewUpload describes an uploaded file; the content is passed separately.
	NewUpload struct {
		ClassID     int    `form:"class_id" validate:"required"`
		Title       string `form:"title" validate:"required,max=200"`
		Description string `form:"description"`
		Filename    string `form:"-" validate:"required"`
	}

	NewLink struct {
		ClassID int    `json:"class_id" validate:"required"`
		Title   string `json:"title" validate:"required,max=200"`
		URL     string `json:"url" validate:"required,url,max=500"`
		Type    string `json:"type" validate:"max=50"`
		Notes   string `json:"notes"`
	}
)

func (qf *QueryFilter) Validate(validate *validator.Validate) error {
	qf.Type = core.CleanString(qf.Type, true /* lower */)
	qf.Sort = core.CleanString(qf.Sort, true /* lower */)
	return validate.Struct(qf)
}

func (nu *NewUpload) Validate(validate *validator.Validate) error {
	nu.Title = core.CleanString(nu.Title)
	nu.Description = core.CleanString(nu.Description)
	return validate.Struct(nu)
}

func (nl *NewLink) Validate(validate *validator.Validate) error {
	nl.Title = core.CleanString(nl.Title)
	nl.URL = core.CleanString(nl.URL)
	nl.Type = core.CleanString(nl.Type, true /* lower */)
	nl.Notes = core.CleanString(nl.Notes)
	return validate.Struct(nl)
}

// Extension returns the lowercased extension of `filename`, without the dot.
func Extension(filename string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
}

func IsAllowedFile(filename string) bool {
	ext := Extension(filename)
	for _, allowed := range AllowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// SecureFilename returns a version of `filename` that is safe to store on disk:
// no directory part, ASCII letters, digits, '_', '.' and '-' only.
func SecureFilename(filename string) string {
	filename = filepath.Base(strings.ReplaceAll(filename, `\`, "/"))
	filename = strings.Join(strings.Fields(filename), "_")
	filename = unsafeFilenameChars.ReplaceAllString(filename, "")
	return strings.Trim(filename, "._")
}
