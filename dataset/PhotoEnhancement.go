package dataset

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/samuelfneumann/spiral/utils/imageutils"
	"golang.org/x/exp/rand"
)

// Pattern matches the photos that a PhotoEnhancement dataset loads
const Pattern = "**/*.{jpg,jpeg,png,JPG,JPEG,PNG}"

// PhotoEnhancement is a dataset of enhanced photos found under a
// directory. Photos are loaded lazily and resized to a square of side
// ImSize; loaded photos are cached.
type PhotoEnhancement struct {
	dir    string
	imsize int
	files  []string
	cache  map[int][]float64
}

// NewPhotoEnhancement returns a dataset of the photos under dir. An
// empty dir returns an empty dataset, which is all that evaluation
// requires.
func NewPhotoEnhancement(dir string, imsize int) (*PhotoEnhancement, error) {
	if imsize < 1 {
		return nil, fmt.Errorf("newPhotoEnhancement: image size must be "+
			"positive \n\twant(>0) \n\thave(%v)", imsize)
	}

	d := &PhotoEnhancement{
		dir:    dir,
		imsize: imsize,
		cache:  make(map[int][]float64),
	}
	if dir == "" {
		return d, nil
	}

	files, err := doublestar.Glob(os.DirFS(dir), Pattern,
		doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("newPhotoEnhancement: could not list %v: %w",
			dir, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("newPhotoEnhancement: no photos under %v: %w",
			dir, fs.ErrNotExist)
	}
	sort.Strings(files)
	d.files = files

	return d, nil
}

// Len returns the number of photos in the dataset
func (p *PhotoEnhancement) Len() int {
	return len(p.files)
}

// Files returns the paths of the photos in the dataset, relative to
// the dataset directory
func (p *PhotoEnhancement) Files() []string {
	return append([]string(nil), p.files...)
}

// Get returns photo i as a flattened image
func (p *PhotoEnhancement) Get(i int) ([]float64, error) {
	if i < 0 || i >= len(p.files) {
		return nil, fmt.Errorf("get: index %v out of range [0, %v)", i,
			len(p.files))
	}
	if data, ok := p.cache[i]; ok {
		return data, nil
	}

	img, err := imageutils.Load(filepath.Join(p.dir, p.files[i]), p.imsize)
	if err != nil {
		return nil, fmt.Errorf("get: %w", err)
	}
	data := imageutils.ToVector(img)
	p.cache[i] = data

	return data, nil
}

// Sample returns a photo chosen uniformly at random
func (p *PhotoEnhancement) Sample(rng *rand.Rand) ([]float64, error) {
	if len(p.files) == 0 {
		return nil, fmt.Errorf("sample: %w", ErrEmpty)
	}
	return p.Get(rng.Intn(len(p.files)))
}
