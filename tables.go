package bmff

import "fmt"

// handlerDescriptions names the handler types spec.md's GLOSSARY enumerates,
// used to annotate hdlr's handler_type field.
var handlerDescriptions = map[string]string{
	"vide": "Video Track",
	"soun": "Sound Track",
	"hint": "Hint Track",
	"meta": "Metadata Track",
	"text": "Text Track",
	"subt": "Subtitle Track",
	"auxv": "Auxiliary Video Track",
}

// HandlerDescription returns a human-readable gloss for a hdlr handler
// type, or "" if unrecognized.
func HandlerDescription(t BoxType) string {
	return handlerDescriptions[t.String()]
}

// brandDescriptions glosses the well-known ftyp/styp compatible_brands and
// major_brand four-CCs most commonly seen in the wild.
var brandDescriptions = map[string]string{
	"isom": "ISO Base Media file, v1",
	"iso2": "ISO Base Media file, v2",
	"iso6": "ISO Base Media file, v6 (CMAF)",
	"mp41": "MP4 v1",
	"mp42": "MP4 v2",
	"avc1": "AVC profile",
	"cmfc": "CMAF",
	"dash": "MPEG-DASH",
	"3gp4": "3GPP Media (v4)",
	"3gp5": "3GPP Media (v5)",
	"qt  ": "QuickTime",
	"M4A ": "iTunes AAC-LC",
	"M4V ": "iTunes video",
	"heic": "HEIF image, HEVC, single image",
	"heix": "HEIF image, HEVC",
	"mif1": "HEIF image, still image",
	"msf1": "HEIF image sequence",
}

// BrandDescription returns a human-readable gloss for a brand four-CC, or
// "" if unrecognized.
func BrandDescription(t BoxType) string {
	return brandDescriptions[t.String()]
}

// iso6392Languages maps the lowercase three-letter packed code stored in
// mdhd's language field to its ISO 639-2 name. Covers the codes actually
// encountered in the wild; anything absent renders with its bare code and
// no gloss rather than failing the parse.
var iso6392Languages = map[string]string{
	"und": "Undetermined", "eng": "English", "fre": "French", "fra": "French",
	"ger": "German", "deu": "German", "spa": "Spanish", "ita": "Italian",
	"por": "Portuguese", "rus": "Russian", "jpn": "Japanese", "chi": "Chinese",
	"zho": "Chinese", "kor": "Korean", "ara": "Arabic", "hin": "Hindi",
	"dut": "Dutch", "nld": "Dutch", "swe": "Swedish", "nor": "Norwegian",
	"dan": "Danish", "fin": "Finnish", "pol": "Polish", "tur": "Turkish",
	"gre": "Greek", "ell": "Greek", "heb": "Hebrew", "tha": "Thai",
	"vie": "Vietnamese", "ind": "Indonesian", "may": "Malay", "msa": "Malay",
	"cze": "Czech", "ces": "Czech", "hun": "Hungarian", "rum": "Romanian",
	"ron": "Romanian", "ukr": "Ukrainian", "bul": "Bulgarian", "cat": "Catalan",
}

// decodeLanguage unpacks mdhd's 5+5+5-bit language field into its
// three-letter ISO 639-2 code and gloss.
func decodeLanguage(packed uint16) (code, desc string) {
	b := []byte{
		byte((packed>>10)&0x1f) + 0x60,
		byte((packed>>5)&0x1f) + 0x60,
		byte(packed&0x1f) + 0x60,
	}
	code = string(b)
	if d, ok := iso6392Languages[code]; ok {
		desc = d
	}
	return code, desc
}

// objectTypeIndications names the MPEG-4 Systems objectTypeIndication
// values esds/DecoderConfigDescriptor most commonly carries.
var objectTypeIndications = map[uint8]string{
	0x20: "MPEG-4 Visual",
	0x21: "AVC (H.264)",
	0x23: "HEVC (H.265)",
	0x40: "MPEG-4 Audio (AAC)",
	0x60: "MPEG-2 Visual (Simple Profile)",
	0x61: "MPEG-2 Visual (Main Profile)",
	0x69: "MPEG-2 Audio (Part 3)",
	0x6B: "MPEG-1 Audio (usually MP3)",
	0x6A: "MPEG-1 Visual",
	0xA5: "AC-3 Audio",
	0xA6: "E-AC-3 Audio",
	0xDD: "VorbisAudio (non-standard)",
}

// ObjectTypeIndicationDescription glosses an objectTypeIndication byte.
func ObjectTypeIndicationDescription(oti uint8) string {
	if d, ok := objectTypeIndications[oti]; ok {
		return d
	}
	return ""
}

// streamTypes names the 6-bit streamType field of DecoderConfigDescriptor.
var streamTypes = map[uint8]string{
	1: "ObjectDescriptorStream", 2: "ClockReferenceStream",
	3: "SceneDescriptionStream", 4: "VisualStream", 5: "AudioStream",
	6: "MPEG7Stream", 7: "IPMPStream", 8: "ObjectContentInfoStream",
	9: "MPEGJStream", 10: "InteractionStream", 11: "IPMPToolStream",
}

// StreamTypeDescription glosses a 6-bit streamType value.
func StreamTypeDescription(st uint8) string {
	if d, ok := streamTypes[st]; ok {
		return d
	}
	return ""
}

// sampleDependsOnDescriptions glosses sdtp/trun's 2-bit
// sample_depends_on/is_depended_on/has_redundancy codes, all sharing the
// same 0..3 enumeration per ISO/IEC 14496-12.
var sampleDependsOnDescriptions = map[uint8]string{
	0: "unknown", 1: "yes", 2: "no",
}

// SampleDependsOnDescription glosses a 2-bit dependency code.
func SampleDependsOnDescription(v uint8) string {
	if d, ok := sampleDependsOnDescriptions[v]; ok {
		return d
	}
	return fmt.Sprintf("reserved(%d)", v)
}
