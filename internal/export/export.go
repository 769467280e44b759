package export

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/dshills/prdforge/internal/domain"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Markdown renders an artifact as a markdown document.
func Markdown(a *domain.Artifact) []byte {
	var buf bytes.Buffer
	buf.WriteString(fmt.Sprintf("# %s\n\n", a.Title))
	buf.WriteString(fmt.Sprintf("_%s%sCreated %s_\n\n", a.ToolType.Label(), separatorText, a.CreatedAt.UTC().Format("2006-01-02")))

	prev := BlockType("")
	for _, blk := range Blocks(a) {
		// Close a bullet run before the next non-bullet block.
		if prev == BlockBullet && blk.Type != BlockBullet {
			buf.WriteString("\n")
		}
		switch blk.Type {
		case BlockHeading:
			buf.WriteString(fmt.Sprintf("## %s\n\n", blk.Text))
		case BlockSubhead:
			buf.WriteString(fmt.Sprintf("### %s\n\n", blk.Text))
		case BlockBullet:
			buf.WriteString(fmt.Sprintf("- %s\n", blk.Text))
		case BlockDivider:
			buf.WriteString("---\n\n")
		default:
			buf.WriteString(fmt.Sprintf("%s\n\n", blk.Text))
		}
		prev = blk.Type
	}
	if prev == BlockBullet {
		buf.WriteString("\n")
	}

	return bytes.TrimRight(buf.Bytes(), "\n")
}

// JSON renders an artifact as indented JSON.
func JSON(a *domain.Artifact) ([]byte, error) {
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal artifact: %w", err)
	}
	return data, nil
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

const maxSlugLength = 60

// Filename builds a download name such as "habit-tracker.md". Accents are
// folded to ASCII; titles with no usable characters fall back to the tool
// type.
func Filename(a *domain.Artifact, ext string) string {
	fold := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(fold, a.Title)
	if err != nil {
		folded = a.Title
	}

	slug := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(folded), "-"), "-")
	if len(slug) > maxSlugLength {
		slug = strings.TrimRight(slug[:maxSlugLength], "-")
	}
	if slug == "" {
		slug = string(a.ToolType)
	}
	return slug + "." + ext
}

// BundleContents holds all files for an artifact archive.
type BundleContents struct {
	ArtifactMD   []byte
	ArtifactJSON []byte
	VersionsJSON []byte
}

// Bundle builds the archive contents for an artifact and its history.
func Bundle(a *domain.Artifact, versions []*domain.Version) (*BundleContents, error) {
	artifactJSON, err := JSON(a)
	if err != nil {
		return nil, err
	}

	if versions == nil {
		versions = []*domain.Version{}
	}
	versionsJSON, err := json.MarshalIndent(versions, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal versions: %w", err)
	}

	return &BundleContents{
		ArtifactMD:   Markdown(a),
		ArtifactJSON: artifactJSON,
		VersionsJSON: versionsJSON,
	}, nil
}

// WriteZip writes the bundle to a zip archive. Entries are written in
// name order with a fixed timestamp so archives are reproducible.
func WriteZip(contents *BundleContents, modified time.Time, w io.Writer) error {
	zw := zip.NewWriter(w)

	files := map[string][]byte{
		"ARTIFACT.md":   contents.ArtifactMD,
		"ARTIFACT.json": contents.ArtifactJSON,
		"VERSIONS.json": contents.VersionsJSON,
	}
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		fw, err := zw.CreateHeader(&zip.FileHeader{
			Name:     name,
			Method:   zip.Deflate,
			Modified: modified,
		})
		if err != nil {
			return fmt.Errorf("create %s: %w", name, err)
		}
		if _, err := fw.Write(files[name]); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}

	return zw.Close()
}
