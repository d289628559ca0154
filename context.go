package bmff

// Context is the small, immutable-per-frame record threaded through every
// box parser (spec.md §4.5/§9). It carries the only cross-box information
// flow the dissector has; there is no package-level mutable state.
//
// Entering a trak or meta pushes a new frame by value (Context is copied,
// never mutated in place by callees); leaving restores the caller's copy.
// This mirrors the teacher's track/track.go, which threads a similar
// per-track record through parseTrak/parseMdia/parseStbl by value rather
// than accumulating it in a package global.
type Context struct {
	HandlerType BoxType // set on entering hdlr, zero value outside any trak/meta
	TimeScale   uint32  // set from the latest mvhd or mdhd, 0 if not yet known
	TrackID     uint32  // set from tkhd, 0 if not yet known

	// TencDefaultIVSize is the Per_Sample_IV_Size learned from a tenc box
	// seen earlier in the same sinf/schi scope, 0 if none has been seen.
	TencDefaultIVSize uint8

	// SencPerSampleIV is the user-supplied --senc-per-sample-iv override;
	// it takes precedence over TencDefaultIVSize when both are set, per
	// spec.md §6.
	SencPerSampleIV uint8

	Emitter *Emitter
	Options Options
}

// WithHandlerType returns a copy of c with HandlerType set, for use on
// entering hdlr.
func (c Context) WithHandlerType(t BoxType) Context {
	c.HandlerType = t
	return c
}

// WithTimeScale returns a copy of c with TimeScale set, for use on reading
// mvhd's or mdhd's timescale field.
func (c Context) WithTimeScale(ts uint32) Context {
	c.TimeScale = ts
	return c
}

// WithTrackID returns a copy of c with TrackID set, for use on reading
// tkhd's track_ID field.
func (c Context) WithTrackID(id uint32) Context {
	c.TrackID = id
	return c
}

// WithTencDefault returns a copy of c with the tenc-derived IV size set.
func (c Context) WithTencDefault(ivSize uint8) Context {
	c.TencDefaultIVSize = ivSize
	return c
}

// ResolvedSencIVSize returns the IV size senc should use: the explicit CLI
// override if given, else the tenc-derived default, else 0 meaning
// "unknown" (the senc parser then falls back to a hex dump, per spec.md's
// Open Question decision recorded in SPEC_FULL.md §7).
func (c Context) ResolvedSencIVSize() uint8 {
	if c.SencPerSampleIV != 0 {
		return c.SencPerSampleIV
	}
	return c.TencDefaultIVSize
}

// SecondsAt renders a duration given in this context's timescale units as a
// human-readable seconds annotation, or "" if the timescale is unknown.
func (c Context) SecondsAt(units uint64) string {
	if c.TimeScale == 0 {
		return ""
	}
	return formatSeconds(float64(units) / float64(c.TimeScale))
}
