package media

// Video identifies one remote media item. Identity fields are set when the
// item is created and never mutated afterwards.
type Video struct {
	ID          string
	URL         string
	Title       string
	ChannelID   string
	ChannelName string
}

// Detection is the detect-phase result: which subtitle tracks exist.
type Detection struct {
	HasSubtitles bool
	// Languages lists available subtitle language codes, manual tracks first.
	Languages []string
	// Automatic is true when only auto-generated captions are available.
	Automatic bool
}

// Download is the fetch-phase result: files staged in the item scratch dir.
type Download struct {
	SubtitlePath string
	Language     string
	InfoPath     string
}

// Translation is one per-language translate-phase sub-result.
type Translation struct {
	Language string
	Path     string
}

// Summary is the summarize-phase result.
type Summary struct {
	Path string
}

// Published is the persist-phase result: final artifact locations.
type Published struct {
	Dir   string
	Paths []string
}
