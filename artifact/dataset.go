package artifact

import (
	"fmt"
	"io/ioutil"
	"math/rand"
	"path/filepath"
	"sort"
	"strings"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/anthonynsimon/bild/transform"
	"github.com/tantelu/CSinGAN"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/essentials"

	_ "image/gif"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
	".webp": true,
}

// A Dataset is a directory of training images, ordered by
// file name.
type Dataset struct {
	Dir string

	// Size is the side length images are resized to.
	Size int

	// Depth is the number of channels per pixel.
	Depth int

	names []string
}

// OpenDataset lists the images in a directory.
func OpenDataset(dir string, size, depth int) (*Dataset, error) {
	listing, err := ioutil.ReadDir(dir)
	if err != nil {
		return nil, essentials.AddCtx("open dataset", err)
	}
	var names []string
	for _, info := range listing {
		ext := strings.ToLower(filepath.Ext(info.Name()))
		if !info.IsDir() && imageExtensions[ext] {
			names = append(names, info.Name())
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("open dataset: %w: no images in %s", singan.ErrConfiguration, dir)
	}
	sort.Strings(names)
	return &Dataset{Dir: dir, Size: size, Depth: depth, names: names}, nil
}

// Len returns the number of images.
func (d *Dataset) Len() int {
	return len(d.names)
}

// Name returns the file name of an image.
func (d *Dataset) Name(index int) string {
	return d.names[index]
}

// Pick resolves an image index.
// A negative index selects an image at random.
func (d *Dataset) Pick(index int, rng *rand.Rand) (int, error) {
	if index < 0 {
		return rng.Intn(len(d.names)), nil
	}
	if index >= len(d.names) {
		return 0, fmt.Errorf("%w: image index %d out of range [0, %d)",
			singan.ErrConfiguration, index, len(d.names))
	}
	return index, nil
}

// Image decodes an image, resizes it to a Size by Size
// square, and converts it to a tensor.
func (d *Dataset) Image(c anyvec.Creator, index int) (anyvec.Vector, error) {
	if index < 0 || index >= len(d.names) {
		return nil, fmt.Errorf("load image: %w: index %d out of range [0, %d)",
			singan.ErrConfiguration, index, len(d.names))
	}
	path := filepath.Join(d.Dir, d.names[index])
	img, err := imgio.Open(path)
	if err != nil {
		return nil, essentials.AddCtx("load image", err)
	}
	resized := transform.Resize(img, d.Size, d.Size, transform.Linear)
	return ImageToTensor(c, resized, d.Depth)
}
