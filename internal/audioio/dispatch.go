package audioio

import "strings"

// DetectAndDecode picks an adapter by file extension, falling back to
// FFmpegSource for anything unrecognized. This is the single entry
// point cmd/fpctl and the orchestrator use; callers that know their
// format ahead of time can use WAVSource/MP3Source/FLACSource directly.
func DetectAndDecode(path string) (Decoded, error) {
	ext := strings.ToLower(path[strings.LastIndexByte(path, '.')+1:])
	switch ext {
	case "wav", "wave":
		return WAVSource{}.Decode(path)
	case "mp3":
		return MP3Source{}.Decode(path)
	case "flac":
		return FLACSource{}.Decode(path)
	default:
		return FFmpegSource{}.Decode(path)
	}
}
