package buckets

import (
	"strings"

	"github.com/recipeshelf/shelf/internal/models"
)

const (
	// DefaultImageBase is the stock image folder used for gallery cards.
	DefaultImageBase = "https://res.cloudinary.com/recipe-shelf/image/upload/v1484217570/stock-images"
	// DefaultSiteBase is the public site that item pages live under.
	DefaultSiteBase = "https://www.recipeshelf.com.au"
)

// ImageURL returns "<base>/<title>.jpg". The title is used verbatim.
func ImageURL(base, title string) string {
	return base + "/" + title + ".jpg"
}

// ItemURL returns "<base>/<segment>/<lowercased title>/".
func ItemURL(base, segment, title string) string {
	return base + "/" + segment + "/" + strings.ToLower(title) + "/"
}

// URLBuilder builds gallery cards for a bucket. It holds no state beyond its
// configured bases, so equal inputs always produce equal cards.
type URLBuilder struct {
	imageBase string
	siteBase  string
	paths     map[string]string
}

// NewURLBuilder returns a builder. Empty bases fall back to the defaults.
// paths maps a bucket name to its URL path segment; buckets without an
// entry use their own name.
func NewURLBuilder(imageBase, siteBase string, paths map[string]string) *URLBuilder {
	if imageBase == "" {
		imageBase = DefaultImageBase
	}
	if siteBase == "" {
		siteBase = DefaultSiteBase
	}
	cleaned := make(map[string]string, len(paths))
	for bucket, segment := range paths {
		cleaned[bucket] = strings.Trim(segment, "/")
	}
	return &URLBuilder{
		imageBase: strings.TrimRight(imageBase, "/"),
		siteBase:  strings.TrimRight(siteBase, "/"),
		paths:     cleaned,
	}
}

// PathSegment returns the site path segment for bucket.
func (b *URLBuilder) PathSegment(bucket string) string {
	if segment, ok := b.paths[bucket]; ok && segment != "" {
		return segment
	}
	return bucket
}

// Element builds the card for one item in bucket.
func (b *URLBuilder) Element(bucket, title string) models.GalleryElement {
	return models.GalleryElement{
		Title:    title,
		ImageURL: ImageURL(b.imageBase, title),
		ItemURL:  ItemURL(b.siteBase, b.PathSegment(bucket), title),
	}
}

// Gallery builds a gallery with one card per name, in the order given.
func (b *URLBuilder) Gallery(bucket string, names []string) *models.Gallery {
	elements := make([]models.GalleryElement, 0, len(names))
	for _, name := range names {
		elements = append(elements, b.Element(bucket, name))
	}
	return models.NewGallery(elements)
}
