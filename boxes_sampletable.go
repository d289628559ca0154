package bmff

import "fmt"

func init() {
	RegisterParser(TypeStts, parseStts)
	RegisterParser(TypeCtts, parseCtts)
	RegisterParser(TypeStsc, parseStsc)
	RegisterParser(TypeStsz, parseStsz)
	RegisterParser(TypeStz2, parseStz2)
	RegisterParser(TypeStco, parseStco)
	RegisterParser(TypeCo64, parseCo64)
	RegisterParser(TypeStss, parseStss)
	RegisterParser(TypeStsh, parseStsh)
	RegisterParser(TypeSdtp, parseSdtp)
	RegisterParser(TypePadb, parsePadb)
	RegisterParser(TypeSbgp, parseSbgp)
	RegisterParser(TypeSgpd, parseSgpd)
	RegisterParser(TypeSubs, parseSubs)
	RegisterParser(TypeSaiz, parseSaiz)
	RegisterParser(TypeSaio, parseSaio)

	RegisterParser(TypeAvc1, parseVisualSampleEntry)
	RegisterParser(TypeAvc3, parseVisualSampleEntry)
	RegisterParser(TypeHvc1, parseVisualSampleEntry)
	RegisterParser(TypeHev1, parseVisualSampleEntry)
	RegisterParser(TypeEncv, parseVisualSampleEntry)
	RegisterParser(TypeMp4v, parseVisualSampleEntry)
	RegisterParser(TypeMp4a, parseAudioSampleEntry)
	RegisterParser(TypeEnca, parseAudioSampleEntry)
	RegisterParser(TypeAvcC, parseAvcC)
	RegisterParser(TypeEsds, parseEsds)
	RegisterParser(TypeIods, parseEsds)
}

// parseStts reads the time-to-sample table: entry_count records of
// (sample_count, sample_delta), with a running sample-index/time aggregate
// summary row, per spec.md §4.3/§8's truncated-table worked example.
func parseStts(c *Cursor, h Header, ctx Context) (Context, error) {
	_, _, err := readFullBoxHeader(c)
	if err != nil {
		return ctx, err
	}
	count, err := c.U32()
	if err != nil {
		return ctx, err
	}
	e := ctx.Emitter
	e.Field("entry_count", fmt.Sprintf("%d", count), "")

	t := e.BeginTable()
	var totalSamples uint64
	var totalTime uint64
	for i := uint32(0); i < count; i++ {
		sampleCount, err := c.U32()
		if err != nil {
			return ctx, err
		}
		sampleDelta, err := c.U32()
		if err != nil {
			return ctx, err
		}
		t.Row(fmt.Sprintf("[%d] sample_count=%d sample_delta=%d", i, sampleCount, sampleDelta))
		totalSamples += uint64(sampleCount)
		totalTime += uint64(sampleCount) * uint64(sampleDelta)
	}
	t.Finish(fmt.Sprintf("[samples = %d, time = %d]", totalSamples, totalTime))
	return ctx, nil
}

func parseCtts(c *Cursor, h Header, ctx Context) (Context, error) {
	version, _, err := readFullBoxHeader(c)
	if err != nil {
		return ctx, err
	}
	count, err := c.U32()
	if err != nil {
		return ctx, err
	}
	e := ctx.Emitter
	e.Field("entry_count", fmt.Sprintf("%d", count), "")

	t := e.BeginTable()
	var totalSamples uint64
	for i := uint32(0); i < count; i++ {
		sampleCount, err := c.U32()
		if err != nil {
			return ctx, err
		}
		var offset int64
		if version == 0 {
			v, err := c.U32()
			if err != nil {
				return ctx, err
			}
			offset = int64(v)
		} else {
			v, err := c.I32()
			if err != nil {
				return ctx, err
			}
			offset = int64(v)
		}
		t.Row(fmt.Sprintf("[%d] sample_count=%d sample_offset=%d", i, sampleCount, offset))
		totalSamples += uint64(sampleCount)
	}
	t.Finish(fmt.Sprintf("[samples = %d]", totalSamples))
	return ctx, nil
}

func parseStsc(c *Cursor, h Header, ctx Context) (Context, error) {
	_, _, err := readFullBoxHeader(c)
	if err != nil {
		return ctx, err
	}
	count, err := c.U32()
	if err != nil {
		return ctx, err
	}
	e := ctx.Emitter
	e.Field("entry_count", fmt.Sprintf("%d", count), "")

	t := e.BeginTable()
	for i := uint32(0); i < count; i++ {
		firstChunk, err := c.U32()
		if err != nil {
			return ctx, err
		}
		samplesPerChunk, err := c.U32()
		if err != nil {
			return ctx, err
		}
		descIndex, err := c.U32()
		if err != nil {
			return ctx, err
		}
		t.Row(fmt.Sprintf("[%d] first_chunk=%d samples_per_chunk=%d sample_description_index=%d", i, firstChunk, samplesPerChunk, descIndex))
	}
	t.Finish("")
	return ctx, nil
}

func parseStsz(c *Cursor, h Header, ctx Context) (Context, error) {
	_, _, err := readFullBoxHeader(c)
	if err != nil {
		return ctx, err
	}
	e := ctx.Emitter
	sampleSize, err := c.U32()
	if err != nil {
		return ctx, err
	}
	count, err := c.U32()
	if err != nil {
		return ctx, err
	}
	e.Field("sample_size", fmt.Sprintf("%d", sampleSize), "")
	e.Field("sample_count", fmt.Sprintf("%d", count), "")
	if sampleSize != 0 {
		return ctx, nil
	}

	t := e.BeginTable()
	var total uint64
	for i := uint32(0); i < count; i++ {
		sz, err := c.U32()
		if err != nil {
			return ctx, err
		}
		t.Row(fmt.Sprintf("[%d] entry_size=%d", i, sz))
		total += uint64(sz)
	}
	t.Finish(fmt.Sprintf("[total_bytes = %d]", total))
	return ctx, nil
}

func parseStz2(c *Cursor, h Header, ctx Context) (Context, error) {
	_, _, err := readFullBoxHeader(c)
	if err != nil {
		return ctx, err
	}
	if _, err := c.Bytes(3); err != nil { // reserved
		return ctx, err
	}
	fieldSize, err := c.U8()
	if err != nil {
		return ctx, err
	}
	count, err := c.U32()
	if err != nil {
		return ctx, err
	}
	e := ctx.Emitter
	e.Field("field_size", fmt.Sprintf("%d", fieldSize), "")
	e.Field("sample_count", fmt.Sprintf("%d", count), "")

	t := e.BeginTable()
	var i uint32
	for i = 0; i < count; {
		if fieldSize == 16 {
			sz, err := c.U16()
			if err != nil {
				return ctx, err
			}
			t.Row(fmt.Sprintf("[%d] entry_size=%d", i, sz))
			i++
			continue
		}
		if fieldSize == 8 {
			sz, err := c.U8()
			if err != nil {
				return ctx, err
			}
			t.Row(fmt.Sprintf("[%d] entry_size=%d", i, sz))
			i++
			continue
		}
		// 4-bit field size: two samples packed per byte.
		hi, err := c.U(4)
		if err != nil {
			return ctx, err
		}
		t.Row(fmt.Sprintf("[%d] entry_size=%d", i, hi))
		i++
		if i >= count {
			break
		}
		lo, err := c.U(4)
		if err != nil {
			return ctx, err
		}
		t.Row(fmt.Sprintf("[%d] entry_size=%d", i, lo))
		i++
	}
	t.Finish("")
	return ctx, nil
}

func parseStco(c *Cursor, h Header, ctx Context) (Context, error) {
	_, _, err := readFullBoxHeader(c)
	if err != nil {
		return ctx, err
	}
	count, err := c.U32()
	if err != nil {
		return ctx, err
	}
	e := ctx.Emitter
	e.Field("entry_count", fmt.Sprintf("%d", count), "")
	t := e.BeginTable()
	for i := uint32(0); i < count; i++ {
		off, err := c.U32()
		if err != nil {
			return ctx, err
		}
		t.Row(fmt.Sprintf("[%d] chunk_offset=%d", i, off))
	}
	t.Finish("")
	return ctx, nil
}

func parseCo64(c *Cursor, h Header, ctx Context) (Context, error) {
	_, _, err := readFullBoxHeader(c)
	if err != nil {
		return ctx, err
	}
	count, err := c.U32()
	if err != nil {
		return ctx, err
	}
	e := ctx.Emitter
	e.Field("entry_count", fmt.Sprintf("%d", count), "")
	t := e.BeginTable()
	for i := uint32(0); i < count; i++ {
		off, err := c.U64()
		if err != nil {
			return ctx, err
		}
		t.Row(fmt.Sprintf("[%d] chunk_offset=%d", i, off))
	}
	t.Finish("")
	return ctx, nil
}

func parseStss(c *Cursor, h Header, ctx Context) (Context, error) {
	_, _, err := readFullBoxHeader(c)
	if err != nil {
		return ctx, err
	}
	count, err := c.U32()
	if err != nil {
		return ctx, err
	}
	e := ctx.Emitter
	e.Field("entry_count", fmt.Sprintf("%d", count), "")
	t := e.BeginTable()
	for i := uint32(0); i < count; i++ {
		n, err := c.U32()
		if err != nil {
			return ctx, err
		}
		t.Row(fmt.Sprintf("[%d] sample_number=%d", i, n))
	}
	t.Finish("")
	return ctx, nil
}

func parseStsh(c *Cursor, h Header, ctx Context) (Context, error) {
	_, _, err := readFullBoxHeader(c)
	if err != nil {
		return ctx, err
	}
	count, err := c.U32()
	if err != nil {
		return ctx, err
	}
	e := ctx.Emitter
	e.Field("entry_count", fmt.Sprintf("%d", count), "")
	t := e.BeginTable()
	for i := uint32(0); i < count; i++ {
		shadowed, err := c.U32()
		if err != nil {
			return ctx, err
		}
		syncSample, err := c.U32()
		if err != nil {
			return ctx, err
		}
		t.Row(fmt.Sprintf("[%d] shadowed_sample_number=%d sync_sample_number=%d", i, shadowed, syncSample))
	}
	t.Finish("")
	return ctx, nil
}

func parseSdtp(c *Cursor, h Header, ctx Context) (Context, error) {
	_, _, err := readFullBoxHeader(c)
	if err != nil {
		return ctx, err
	}
	e := ctx.Emitter
	t := e.BeginTable()
	for i := 0; !c.AtEnd(); i++ {
		b, err := c.U8()
		if err != nil {
			return ctx, err
		}
		dependsOn := (b >> 4) & 0x3
		isDependedOn := (b >> 2) & 0x3
		hasRedundancy := b & 0x3
		t.Row(fmt.Sprintf("[%d] sample_depends_on=%d (%s) sample_is_depended_on=%d (%s) sample_has_redundancy=%d (%s)",
			i, dependsOn, SampleDependsOnDescription(dependsOn),
			isDependedOn, SampleDependsOnDescription(isDependedOn),
			hasRedundancy, SampleDependsOnDescription(hasRedundancy)))
	}
	t.Finish("")
	return ctx, nil
}

func parsePadb(c *Cursor, h Header, ctx Context) (Context, error) {
	_, _, err := readFullBoxHeader(c)
	if err != nil {
		return ctx, err
	}
	count, err := c.U32()
	if err != nil {
		return ctx, err
	}
	e := ctx.Emitter
	e.Field("sample_count", fmt.Sprintf("%d", count), "")
	t := e.BeginTable()
	for i := uint32(0); i < (count+1)/2; i++ {
		if _, err := c.U(1); err != nil {
			return ctx, err
		}
		pad1, err := c.U(3)
		if err != nil {
			return ctx, err
		}
		if _, err := c.U(1); err != nil {
			return ctx, err
		}
		pad2, err := c.U(3)
		if err != nil {
			return ctx, err
		}
		t.Row(fmt.Sprintf("[%d] pad1=%d pad2=%d", i, pad1, pad2))
	}
	t.Finish("")
	return ctx, nil
}

func parseSbgp(c *Cursor, h Header, ctx Context) (Context, error) {
	version, _, err := readFullBoxHeader(c)
	if err != nil {
		return ctx, err
	}
	e := ctx.Emitter
	groupingType, err := c.U32()
	if err != nil {
		return ctx, err
	}
	e.Field("grouping_type", quoteFourCC(boxTypeFromU32(groupingType)), "")
	if version == 1 {
		groupingTypeParam, err := c.U32()
		if err != nil {
			return ctx, err
		}
		e.Field("grouping_type_parameter", hexNoPrefix(uint64(groupingTypeParam), 4), "")
	}
	count, err := c.U32()
	if err != nil {
		return ctx, err
	}
	e.Field("entry_count", fmt.Sprintf("%d", count), "")
	t := e.BeginTable()
	for i := uint32(0); i < count; i++ {
		sampleCount, err := c.U32()
		if err != nil {
			return ctx, err
		}
		groupDescIndex, err := c.U32()
		if err != nil {
			return ctx, err
		}
		t.Row(fmt.Sprintf("[%d] sample_count=%d group_description_index=%d", i, sampleCount, groupDescIndex))
	}
	t.Finish("")
	return ctx, nil
}

// parseSgpd hex-dumps each group description entry: the payload format is
// entirely defined by grouping_type, an open-ended registry this dissector
// does not attempt to decode (Non-goal: codec/grouping-private payloads).
func parseSgpd(c *Cursor, h Header, ctx Context) (Context, error) {
	version, _, err := readFullBoxHeader(c)
	if err != nil {
		return ctx, err
	}
	e := ctx.Emitter
	groupingType, err := c.U32()
	if err != nil {
		return ctx, err
	}
	e.Field("grouping_type", quoteFourCC(boxTypeFromU32(groupingType)), "")
	defaultLength := uint32(0)
	if version >= 1 {
		defaultLength, err = c.U32()
		if err != nil {
			return ctx, err
		}
		e.Field("default_length", fmt.Sprintf("%d", defaultLength), "")
	}
	if version >= 2 {
		defaultIndex, err := c.U32()
		if err != nil {
			return ctx, err
		}
		e.Field("default_group_description_index", fmt.Sprintf("%d", defaultIndex), "")
	}
	count, err := c.U32()
	if err != nil {
		return ctx, err
	}
	e.Field("entry_count", fmt.Sprintf("%d", count), "")
	t := e.BeginTable()
	for i := uint32(0); i < count; i++ {
		length := defaultLength
		if version >= 1 && defaultLength == 0 {
			l, err := c.U32()
			if err != nil {
				return ctx, err
			}
			length = l
		}
		data, err := c.Bytes(int(length))
		if err != nil {
			return ctx, err
		}
		t.Row(fmt.Sprintf("[%d] length=%d data=%x", i, length, data))
	}
	t.Finish("")
	return ctx, nil
}

func parseSubs(c *Cursor, h Header, ctx Context) (Context, error) {
	version, _, err := readFullBoxHeader(c)
	if err != nil {
		return ctx, err
	}
	count, err := c.U32()
	if err != nil {
		return ctx, err
	}
	e := ctx.Emitter
	e.Field("entry_count", fmt.Sprintf("%d", count), "")
	t := e.BeginTable()
	for i := uint32(0); i < count; i++ {
		sampleDelta, err := c.U32()
		if err != nil {
			return ctx, err
		}
		subsampleCount, err := c.U16()
		if err != nil {
			return ctx, err
		}
		var parts []string
		for j := uint16(0); j < subsampleCount; j++ {
			var size uint32
			if version == 1 {
				size, err = c.U32()
			} else {
				var s16 uint16
				s16, err = c.U16()
				size = uint32(s16)
			}
			if err != nil {
				return ctx, err
			}
			priority, err := c.U8()
			if err != nil {
				return ctx, err
			}
			discardable, err := c.U8()
			if err != nil {
				return ctx, err
			}
			if _, err := c.U(24); err != nil { // codec_specific_parameters
				return ctx, err
			}
			parts = append(parts, fmt.Sprintf("{size=%d priority=%d discardable=%d}", size, priority, discardable))
		}
		t.Row(fmt.Sprintf("[%d] sample_delta=%d subsamples=%v", i, sampleDelta, parts))
	}
	t.Finish("")
	return ctx, nil
}

func parseSaiz(c *Cursor, h Header, ctx Context) (Context, error) {
	_, flags, err := readFullBoxHeader(c)
	if err != nil {
		return ctx, err
	}
	e := ctx.Emitter
	if flags&0x1 != 0 {
		auxInfoType, err := c.U32()
		if err != nil {
			return ctx, err
		}
		auxInfoTypeParam, err := c.U32()
		if err != nil {
			return ctx, err
		}
		e.Field("aux_info_type", quoteFourCC(boxTypeFromU32(auxInfoType)), "")
		e.Field("aux_info_type_parameter", hexNoPrefix(uint64(auxInfoTypeParam), 4), "")
	}
	defaultSize, err := c.U8()
	if err != nil {
		return ctx, err
	}
	count, err := c.U32()
	if err != nil {
		return ctx, err
	}
	e.Field("default_sample_info_size", fmt.Sprintf("%d", defaultSize), "")
	e.Field("sample_count", fmt.Sprintf("%d", count), "")
	if defaultSize != 0 {
		return ctx, nil
	}
	t := e.BeginTable()
	for i := uint32(0); i < count; i++ {
		sz, err := c.U8()
		if err != nil {
			return ctx, err
		}
		t.Row(fmt.Sprintf("[%d] sample_info_size=%d", i, sz))
	}
	t.Finish("")
	return ctx, nil
}

func parseSaio(c *Cursor, h Header, ctx Context) (Context, error) {
	version, flags, err := readFullBoxHeader(c)
	if err != nil {
		return ctx, err
	}
	e := ctx.Emitter
	if flags&0x1 != 0 {
		auxInfoType, err := c.U32()
		if err != nil {
			return ctx, err
		}
		auxInfoTypeParam, err := c.U32()
		if err != nil {
			return ctx, err
		}
		e.Field("aux_info_type", quoteFourCC(boxTypeFromU32(auxInfoType)), "")
		e.Field("aux_info_type_parameter", hexNoPrefix(uint64(auxInfoTypeParam), 4), "")
	}
	count, err := c.U32()
	if err != nil {
		return ctx, err
	}
	e.Field("entry_count", fmt.Sprintf("%d", count), "")
	t := e.BeginTable()
	for i := uint32(0); i < count; i++ {
		var off uint64
		if version == 0 {
			v, err := c.U32()
			if err != nil {
				return ctx, err
			}
			off = uint64(v)
		} else {
			off, err = c.U64()
			if err != nil {
				return ctx, err
			}
		}
		t.Row(fmt.Sprintf("[%d] offset=%d", i, off))
	}
	t.Finish("")
	return ctx, nil
}

func boxTypeFromU32(v uint32) BoxType {
	return BoxType{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
}

// parseVisualSampleEntry covers avc1/avc3/hvc1/hev1/encv/mp4v: the common
// SampleEntry preamble, visual-specific fields, the 32-byte Pascal
// compressorname, and a trailing sub-box sequence (avcC/hvcC/btrt/pasp/
// colr/sinf, ...), per spec.md §4.3's "Sample entries" paragraph.
func parseVisualSampleEntry(c *Cursor, h Header, ctx Context) (Context, error) {
	if _, err := c.Bytes(6); err != nil { // reserved
		return ctx, err
	}
	dataRefIndex, err := c.U16()
	if err != nil {
		return ctx, err
	}
	if _, err := c.Bytes(16); err != nil { // pre_defined/reserved
		return ctx, err
	}
	width, err := c.U16()
	if err != nil {
		return ctx, err
	}
	height, err := c.U16()
	if err != nil {
		return ctx, err
	}
	horizRes, err := c.Fixed(16, 16)
	if err != nil {
		return ctx, err
	}
	vertRes, err := c.Fixed(16, 16)
	if err != nil {
		return ctx, err
	}
	if _, err := c.Bytes(4); err != nil { // reserved
		return ctx, err
	}
	frameCount, err := c.U16()
	if err != nil {
		return ctx, err
	}
	compressorNameLen, err := c.U8()
	if err != nil {
		return ctx, err
	}
	var compressorName string
	if compressorNameLen > 0 {
		b, err := c.Bytes(int(compressorNameLen))
		if err != nil {
			return ctx, err
		}
		compressorName = escapeNonUTF8(b)
	}
	if _, err := c.Bytes(31 - int(compressorNameLen)); err != nil {
		return ctx, err
	}
	depth, err := c.U16()
	if err != nil {
		return ctx, err
	}
	if _, err := c.Bytes(2); err != nil { // pre_defined = -1
		return ctx, err
	}

	e := ctx.Emitter
	e.Field("data_reference_index", fmt.Sprintf("%d", dataRefIndex), "")
	e.Field("width", fmt.Sprintf("%d", width), "")
	e.Field("height", fmt.Sprintf("%d", height), "")
	e.DefaultField("horizresolution", horizRes.String(), "", horizRes.Raw == 0x480000)
	e.DefaultField("vertresolution", vertRes.String(), "", vertRes.Raw == 0x480000)
	e.DefaultField("frame_count", fmt.Sprintf("%d", frameCount), "", frameCount == 1)
	if compressorName != "" {
		e.Field("compressorname", compressorName, "")
	}
	e.DefaultField("depth", fmt.Sprintf("%d", depth), "", depth == 0x18)

	for !c.AtEnd() {
		var err error
		ctx, err = dissectOneBox(c, ctx, h.Type)
		if err != nil {
			return ctx, err
		}
	}
	return ctx, nil
}

// parseAudioSampleEntry covers mp4a/enca: data_reference_index,
// channelcount, samplesize, samplerate, then a trailing sub-box sequence
// (esds, sinf, ...).
func parseAudioSampleEntry(c *Cursor, h Header, ctx Context) (Context, error) {
	if _, err := c.Bytes(6); err != nil { // reserved
		return ctx, err
	}
	dataRefIndex, err := c.U16()
	if err != nil {
		return ctx, err
	}
	if _, err := c.Bytes(8); err != nil { // reserved (version/revision/vendor)
		return ctx, err
	}
	channelCount, err := c.U16()
	if err != nil {
		return ctx, err
	}
	sampleSize, err := c.U16()
	if err != nil {
		return ctx, err
	}
	if _, err := c.Bytes(4); err != nil { // pre_defined + reserved
		return ctx, err
	}
	sampleRate, err := c.Fixed(16, 16)
	if err != nil {
		return ctx, err
	}

	e := ctx.Emitter
	e.Field("data_reference_index", fmt.Sprintf("%d", dataRefIndex), "")
	e.DefaultField("channelcount", fmt.Sprintf("%d", channelCount), "", channelCount == 2)
	e.DefaultField("samplesize", fmt.Sprintf("%d", sampleSize), "", sampleSize == 16)
	e.Field("samplerate", sampleRate.String(), "")

	for !c.AtEnd() {
		var err error
		ctx, err = dissectOneBox(c, ctx, h.Type)
		if err != nil {
			return ctx, err
		}
	}
	return ctx, nil
}

// parseAvcC renders the AVCDecoderConfigurationRecord header fields and
// hex-dumps the SPS/PPS NAL units themselves (codec-private data is an
// explicit Non-goal, spec.md §1).
func parseAvcC(c *Cursor, h Header, ctx Context) (Context, error) {
	e := ctx.Emitter
	configVersion, err := c.U8()
	if err != nil {
		return ctx, err
	}
	profile, err := c.U8()
	if err != nil {
		return ctx, err
	}
	profileCompat, err := c.U8()
	if err != nil {
		return ctx, err
	}
	level, err := c.U8()
	if err != nil {
		return ctx, err
	}
	e.Field("configurationVersion", fmt.Sprintf("%d", configVersion), "")
	e.Field("AVCProfileIndication", fmt.Sprintf("%d", profile), "")
	e.Field("profile_compatibility", hexNoPrefix(uint64(profileCompat), 1), "")
	e.Field("AVCLevelIndication", fmt.Sprintf("%d", level), "")

	rest, err := c.Bytes(int(c.Remaining()))
	if err != nil {
		return ctx, err
	}
	e.HexDump(rest, c.Pos()-int64(len(rest)))
	return ctx, nil
}

// parseEsds covers both esds (ES_Descriptor root) and iods
// (MP4InitialObjectDescriptor root): version+flags, then a descriptor
// sequence per spec.md §4.4.
func parseEsds(c *Cursor, h Header, ctx Context) (Context, error) {
	_, _, err := readFullBoxHeader(c)
	if err != nil {
		return ctx, err
	}
	return ctx, parseDescriptorSequence(c, ctx)
}
