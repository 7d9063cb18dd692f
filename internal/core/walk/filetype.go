package walk

import (
	"path"
	"strings"

	"github.com/simeonradivoev/electron-dam-sub000/internal/model"
)

// typeByExt is the per-type dispatch table; behavior attached to a file
// type (preview generation, import handling) keys off the classification,
// not the extension.
var typeByExt = map[string]model.FileType{
	".obj":   model.TypeModel,
	".fbx":   model.TypeModel,
	".gltf":  model.TypeModel,
	".glb":   model.TypeModel,
	".stl":   model.TypeModel,
	".dae":   model.TypeModel,
	".blend": model.TypeModel,
	".3ds":   model.TypeModel,

	".png":  model.TypeImage,
	".jpg":  model.TypeImage,
	".jpeg": model.TypeImage,
	".webp": model.TypeImage,
	".tga":  model.TypeImage,
	".bmp":  model.TypeImage,
	".gif":  model.TypeImage,
	".exr":  model.TypeImage,
	".hdr":  model.TypeImage,
	".psd":  model.TypeImage,

	".wav":  model.TypeAudio,
	".mp3":  model.TypeAudio,
	".ogg":  model.TypeAudio,
	".flac": model.TypeAudio,
	".aiff": model.TypeAudio,

	".mp4":  model.TypeVideo,
	".webm": model.TypeVideo,
	".mov":  model.TypeVideo,
	".avi":  model.TypeVideo,
	".mkv":  model.TypeVideo,

	".zip": model.TypeArchive,
}

// Classify derives a file-type tag from the extension.
func Classify(name string) model.FileType {
	ext := strings.ToLower(path.Ext(name))
	if t, ok := typeByExt[ext]; ok {
		return t
	}
	return model.TypeOther
}
