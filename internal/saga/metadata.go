package saga

import (
	"bytes"
	"fmt"
	"slices"
	"sort"
	"strings"
	"unicode"

	"github.com/klauspost/compress/zip"

	"builder/internal/gateway"
	"builder/internal/model"
)

// Attribute is one trait of the item metadata document.
type Attribute struct {
	TraitType string `json:"trait_type"`
	Value     string `json:"value"`
}

type RepresentationMetadata struct {
	BodyShapes       []string             `json:"bodyShapes"`
	MainFile         string               `json:"mainFile"`
	Contents         []gateway.ContentRef `json:"contents"`
	OverrideHides    []string             `json:"overrideHides"`
	OverrideReplaces []string             `json:"overrideReplaces"`
}

// Metadata is the document published to the hub for each item before the
// collection is created on chain. Its uri becomes the token uri.
type Metadata struct {
	Name            string                   `json:"name"`
	Description     string                   `json:"description"`
	Image           string                   `json:"image"`
	Representations []RepresentationMetadata `json:"representations"`
	Attributes      []Attribute              `json:"attributes"`
}

func ItemMetadata(item model.Item) Metadata {
	doc := Metadata{
		Name:        item.Name,
		Description: item.Description,
		Image:       item.Contents[thumbnailPath(item)],
	}

	for _, rep := range item.Data.Representations {
		refs := make([]gateway.ContentRef, 0, len(rep.Contents))
		for _, path := range rep.Contents {
			refs = append(refs, gateway.ContentRef{Path: path, Hash: item.Contents[path]})
		}
		doc.Representations = append(doc.Representations, RepresentationMetadata{
			BodyShapes:       rep.BodyShapes,
			MainFile:         rep.MainFile,
			Contents:         refs,
			OverrideHides:    rep.OverrideHides,
			OverrideReplaces: rep.OverrideReplaces,
		})
	}

	doc.Attributes = []Attribute{
		{TraitType: "type", Value: string(item.Type)},
		{TraitType: "category", Value: item.Data.Category},
		{TraitType: "rarity", Value: string(item.Rarity)},
	}
	for _, tag := range item.Data.Tags {
		doc.Attributes = append(doc.Attributes, Attribute{TraitType: "tags", Value: tag})
	}
	for _, hide := range item.Data.Hides {
		doc.Attributes = append(doc.Attributes, Attribute{TraitType: "hides", Value: hide})
	}
	for _, replace := range item.Data.Replaces {
		doc.Attributes = append(doc.Attributes, Attribute{TraitType: "replaces", Value: replace})
	}
	for _, rep := range item.Data.Representations {
		if len(rep.BodyShapes) == 0 {
			continue
		}
		doc.Attributes = append(doc.Attributes, Attribute{
			TraitType: "body_shapes",
			Value:     model.BodyShapeType(rep.BodyShapes[0]),
		})
	}
	return doc
}

func thumbnailPath(item model.Item) string {
	if item.Thumbnail != "" {
		return item.Thumbnail
	}
	return model.ThumbnailPath
}

// Zip packs files in path order.
func Zip(files map[string][]byte) ([]byte, error) {
	paths := make([]string, 0, len(files))
	for path := range files {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, path := range paths {
		f, err := w.Create(path)
		if err != nil {
			return nil, fmt.Errorf("zip %s: %w", path, err)
		}
		if _, err := f.Write(files[path]); err != nil {
			return nil, fmt.Errorf("zip %s: %w", path, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close zip: %w", err)
	}
	return buf.Bytes(), nil
}

// checkBundleSize rejects content bundles whose zip exceeds MaxFileSize.
func checkBundleSize(files map[string][]byte) error {
	if len(files) == 0 {
		return nil
	}
	packed, err := Zip(files)
	if err != nil {
		return err
	}
	if len(packed) > model.MaxFileSize {
		return model.ErrItemTooBig
	}
	return nil
}

// sameRepresentations reports whether the male and female folders hold the
// same number of files and every male hash also appears under female.
func sameRepresentations(contents map[string]string) bool {
	var male, female []string
	for path, hash := range contents {
		switch {
		case strings.HasPrefix(path, model.BodyShapeTypeMale+"/"):
			male = append(male, hash)
		case strings.HasPrefix(path, model.BodyShapeTypeFemale+"/"):
			female = append(female, hash)
		}
	}
	if len(male) != len(female) {
		return false
	}
	for _, hash := range male {
		if !slices.Contains(female, hash) {
			return false
		}
	}
	return true
}

// downloadFiles lays out an item's blobs for the download zip. When both body
// shapes carry the same files the two folders collapse into one.
func downloadFiles(contents map[string]string, blobs map[string][]byte) map[string][]byte {
	merge := sameRepresentations(contents)
	files := make(map[string][]byte, len(blobs))
	for path, data := range blobs {
		if merge {
			if rest, ok := strings.CutPrefix(path, model.BodyShapeTypeMale+"/"); ok {
				files[rest] = data
				continue
			}
			if _, ok := strings.CutPrefix(path, model.BodyShapeTypeFemale+"/"); ok {
				continue
			}
		}
		files[path] = data
	}
	return files
}

// DownloadName is the zip file name for an item.
func DownloadName(item model.Item) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return '_'
		}
		return r
	}, item.Name) + ".zip"
}
