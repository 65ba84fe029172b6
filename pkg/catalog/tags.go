package catalog

import "sort"

// TagCategories is the tag vocabulary offered by the search UI, grouped by
// category.
var TagCategories = map[string][]string{
	"modality": {
		"electron-microscopy",
		"cryo-electron-microscopy",
		"fluorescence-light-microscopy",
		"transmission-light-microscopy",
		"super-resolution-microscopy",
		"x-ray-microscopy",
		"force-microscopy",
		"high-content-imaging",
		"whole-slide-imaging",
	},
	"dims": {"2D", "3D", "2d-t", "3d-t"},
	"content": {
		"cells",
		"nuclei",
		"extracellular-vesicles",
		"tissue",
		"plant",
		"mitochondria",
		"vasculature",
		"cell-membrane",
		"brain",
		"whole-organism",
	},
	"framework": {"tensorflow", "pytorch", "tensorflow.js"},
	"software":  {"ilastik", "imagej", "fiji", "imjoy", "deepimagej", "napari"},
	"method":    {"stardist", "cellpose", "yolo", "care", "n2v", "denoiseg"},
	"network":   {"unet", "densenet", "resnet", "inception", "shufflenet"},
	"task": {
		"semantic-segmentation",
		"instance-segmentation",
		"object-detection",
		"image-classification",
		"denoising",
		"image-restoration",
		"image-reconstruction",
		"in-silico-labeling",
	},
}

// TagCategoryNames returns the category names sorted alphabetically.
func TagCategoryNames() []string {
	names := make([]string, 0, len(TagCategories))
	for name := range TagCategories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsKnownTag reports whether tag appears in any category.
func IsKnownTag(tag string) bool {
	for _, tags := range TagCategories {
		for _, t := range tags {
			if t == tag {
				return true
			}
		}
	}
	return false
}
