package settings_manager

import "math"

type Resolution struct {
	ID     string
	Width  int
	Height int
	Name   string
}

var resolutions = []Resolution{
	{ID: "sd_res_512x512", Width: 512, Height: 512, Name: "512x512 (1:1, icons, profile pictures)"},
	{ID: "sd_res_600x600", Width: 600, Height: 600, Name: "600x600 (1:1, icons, profile pictures)"},
	{ID: "sd_res_512x768", Width: 512, Height: 768, Name: "512x768 (2:3, vertical character card)"},
	{ID: "sd_res_768x512", Width: 768, Height: 512, Name: "768x512 (3:2, horizontal 35-mm movie film)"},
	{ID: "sd_res_960x540", Width: 960, Height: 540, Name: "960x540 (16:9, horizontal wallpaper)"},
	{ID: "sd_res_540x960", Width: 540, Height: 960, Name: "540x960 (9:16, vertical wallpaper)"},
	{ID: "sd_res_1920x1088", Width: 1920, Height: 1088, Name: "1920x1088 (16:9, 1080p, horizontal wallpaper)"},
	{ID: "sd_res_1088x1920", Width: 1088, Height: 1920, Name: "1088x1920 (9:16, 1080p, vertical wallpaper)"},
	{ID: "sd_res_1280x720", Width: 1280, Height: 720, Name: "1280x720 (16:9, 720p, horizontal wallpaper)"},
	{ID: "sd_res_720x1280", Width: 720, Height: 1280, Name: "720x1280 (9:16, 720p, vertical wallpaper)"},
	{ID: "sd_res_1024x1024", Width: 1024, Height: 1024, Name: "1024x1024 (1:1, SDXL)"},
	{ID: "sd_res_1152x896", Width: 1152, Height: 896, Name: "1152x896 (9:7, SDXL)"},
	{ID: "sd_res_896x1152", Width: 896, Height: 1152, Name: "896x1152 (7:9, SDXL)"},
	{ID: "sd_res_1216x832", Width: 1216, Height: 832, Name: "1216x832 (19:13, SDXL)"},
	{ID: "sd_res_832x1216", Width: 832, Height: 1216, Name: "832x1216 (13:19, SDXL)"},
	{ID: "sd_res_1344x768", Width: 1344, Height: 768, Name: "1344x768 (4:3, SDXL)"},
	{ID: "sd_res_768x1344", Width: 768, Height: 1344, Name: "768x1344 (3:4, SDXL)"},
	{ID: "sd_res_1536x640", Width: 1536, Height: 640, Name: "1536x640 (24:10, SDXL)"},
	{ID: "sd_res_640x1536", Width: 640, Height: 1536, Name: "640x1536 (10:24, SDXL)"},
}

func Resolutions() []Resolution {
	return resolutions
}

func LookupResolution(id string) (Resolution, bool) {
	for _, res := range resolutions {
		if res.ID == id {
			return res, true
		}
	}

	return Resolution{}, false
}

// ClosestResolution picks the preset with the smallest sum of relative aspect and area difference.
func ClosestResolution(width, height int) Resolution {
	best := resolutions[0]

	if width <= 0 || height <= 0 {
		return best
	}

	targetAspect := float64(width) / float64(height)
	targetArea := float64(width * height)
	minDiff := math.Inf(1)

	for _, res := range resolutions {
		aspectDiff := math.Abs(float64(res.Width)/float64(res.Height)-targetAspect) / targetAspect
		areaDiff := math.Abs(float64(res.Width*res.Height)-targetArea) / targetArea

		if aspectDiff+areaDiff < minDiff {
			minDiff = aspectDiff + areaDiff
			best = res
		}
	}

	return best
}
