// Package bmff implements a streaming dissector for the ISO Base Media File
// Format (ISO/IEC 14496-12), the container shared by MP4, QuickTime, 3GPP,
// CMAF, fragmented-MP4 segments and HEIF.
//
// The package reads a box tree and renders it as an indented field listing;
// it does not build an in-memory document and does not write ISOBMFF back
// out. See Dissect for the entry point.
package bmff

import "fmt"

// BoxType is a four-character box type identifier, or (for uuid boxes) not
// used directly — uuid boxes carry a separate 16-byte ExtendedType.
type BoxType [4]byte

func (t BoxType) String() string { return string(t[:]) }

// btype builds a BoxType from a 4-byte string literal.
func btype(s string) BoxType {
	if len(s) != 4 {
		panic("bmff: box type must be 4 bytes: " + s)
	}
	return BoxType{s[0], s[1], s[2], s[3]}
}

// Well-known box types. Grouped the way ISO/IEC 14496-12 groups them.
var (
	TypeFtyp = btype("ftyp")
	TypeStyp = btype("styp")
)

// Movie structure boxes (moov and children).
var (
	TypeMoov = btype("moov")
	TypeMvhd = btype("mvhd")
	TypeTrak = btype("trak")
	TypeTkhd = btype("tkhd")
	TypeTref = btype("tref")
	TypeTrgr = btype("trgr")
	TypeEdts = btype("edts")
	TypeElst = btype("elst")
	TypeMdia = btype("mdia")
	TypeMdhd = btype("mdhd")
	TypeHdlr = btype("hdlr")
	TypeElng = btype("elng")
	TypeMinf = btype("minf")
	TypeVmhd = btype("vmhd")
	TypeSmhd = btype("smhd")
	TypeHmhd = btype("hmhd")
	TypeSthd = btype("sthd")
	TypeNmhd = btype("nmhd")
	TypeDinf = btype("dinf")
	TypeDref = btype("dref")
	TypeUrl  = btype("url ")
	TypeUrn  = btype("urn ")
)

// Sample table boxes (stbl children).
var (
	TypeStbl = btype("stbl")
	TypeStsd = btype("stsd")
	TypeStts = btype("stts")
	TypeCtts = btype("ctts")
	TypeCslg = btype("cslg")
	TypeStsc = btype("stsc")
	TypeStsz = btype("stsz")
	TypeStz2 = btype("stz2")
	TypeStco = btype("stco")
	TypeCo64 = btype("co64")
	TypeStss = btype("stss")
	TypeStsh = btype("stsh")
	TypePadb = btype("padb")
	TypeStdp = btype("stdp")
	TypeSdtp = btype("sdtp")
	TypeSbgp = btype("sbgp")
	TypeSgpd = btype("sgpd")
	TypeSubs = btype("subs")
	TypeSaiz = btype("saiz")
	TypeSaio = btype("saio")
)

// Fragment boxes (moof and children, mvex).
var (
	TypeMvex = btype("mvex")
	TypeMehd = btype("mehd")
	TypeTrex = btype("trex")
	TypeLeva = btype("leva")
	TypeMoof = btype("moof")
	TypeMfhd = btype("mfhd")
	TypeTraf = btype("traf")
	TypeTfhd = btype("tfhd")
	TypeTfdt = btype("tfdt")
	TypeTrun = btype("trun")
	TypeSidx = btype("sidx")
	TypeSsix = btype("ssix")
	TypeEmsg = btype("emsg")
	TypeMfra = btype("mfra")
	TypeTfra = btype("tfra")
	TypeMfro = btype("mfro")
	TypeSenc = btype("senc")
)

// DRM / protection boxes.
var (
	TypeSinf = btype("sinf")
	TypeFrma = btype("frma")
	TypeSchm = btype("schm")
	TypeSchi = btype("schi")
	TypeTenc = btype("tenc")
	TypePssh = btype("pssh")
	TypeIpro = btype("ipro")
)

// Metadata boxes.
var (
	TypeMeta = btype("meta")
	TypeUdta = btype("udta")
	TypeIlst = btype("ilst")
)

// QuickTime ilst value atoms commonly seen under udta/meta/ilst.
var (
	TypeData  = btype("data")
	TypeQtNam = BoxType{0xa9, 'n', 'a', 'm'}
	TypeQtArt = BoxType{0xa9, 'A', 'R', 'T'}
	TypeQtAlb = BoxType{0xa9, 'a', 'l', 'b'}
	TypeQtDay = BoxType{0xa9, 'd', 'a', 'y'}
	TypeQtCmt = BoxType{0xa9, 'c', 'm', 't'}
	TypeQtGen = BoxType{0xa9, 'g', 'e', 'n'}
	TypeQtWrt = BoxType{0xa9, 'w', 'r', 't'}
	TypeQtToo = BoxType{0xa9, 't', 'o', 'o'}
)

// Data boxes.
var (
	TypeMdat = btype("mdat")
	TypeFree = btype("free")
	TypeSkip = btype("skip")
	TypeWide = btype("wide")
)

// Sample entry boxes (children of stsd) and their sub-boxes.
var (
	TypeAvc1 = btype("avc1")
	TypeAvc3 = btype("avc3")
	TypeAvcC = btype("avcC")
	TypeHvc1 = btype("hvc1")
	TypeHev1 = btype("hev1")
	TypeHvcC = btype("hvcC")
	TypeEncv = btype("encv")
	TypeBtrt = btype("btrt")
	TypePasp = btype("pasp")
	TypeColr = btype("colr")
	TypeMp4a = btype("mp4a")
	TypeEnca = btype("enca")
	TypeEsds = btype("esds")
	TypeIods = btype("iods")
	TypeWave = btype("wave")
	TypeMp4v = btype("mp4v")
	TypeTx3g = btype("tx3g")
	TypeMp4s = btype("mp4s")
)

// HEIF / MIAF item boxes (meta container's children and their sub-boxes).
var (
	TypeIloc = btype("iloc")
	TypeIinf = btype("iinf")
	TypeInfe = btype("infe")
	TypePitm = btype("pitm")
	TypeIref = btype("iref")
	TypeIprp = btype("iprp")
	TypeIpco = btype("ipco")
	TypeIpma = btype("ipma")
	TypeIdat = btype("idat")
	TypeIrot = btype("irot")
	TypeImir = btype("imir")
	TypeIspe = btype("ispe")
)

// TypeUuid is the extended-type box; its real type lives in the 16-byte
// payload prefix rather than the 4-byte header field.
var TypeUuid = btype("uuid")

// fullBoxTypes lists every box type whose payload begins with the 1-byte
// version + 3-byte flags FullBox header (ISO/IEC 14496-12 §4.2).
//
// It backs the exported IsFullBox predicate only: the driver does not
// consult it, and each full-box grammar consumes its own version+flags via
// readFullBoxHeader.
var fullBoxTypes = map[BoxType]bool{
	TypeMvhd: true, TypeTkhd: true, TypeMdhd: true, TypeHdlr: true,
	TypeVmhd: true, TypeSmhd: true, TypeHmhd: true, TypeNmhd: true,
	TypeDref: true, TypeUrl: true, TypeUrn: true,
	TypeStsd: true, TypeStts: true, TypeCtts: true, TypeStsc: true,
	TypeStsz: true, TypeStz2: true, TypeStco: true, TypeCo64: true,
	TypeStss: true, TypeStsh: true, TypePadb: true, TypeSdtp: true,
	TypeSbgp: true, TypeSgpd: true, TypeSubs: true, TypeSaiz: true,
	TypeSaio: true, TypeCslg: true,
	TypeElst: true, TypeMeta: true, TypeEsds: true, TypeIods: true,
	TypeMehd: true, TypeTrex: true, TypeMfhd: true, TypeTfhd: true,
	TypeTfdt: true, TypeTrun: true, TypeSidx: true, TypeSsix: true,
	TypeEmsg: true, TypeTfra: true, TypeMfro: true, TypeSenc: true,
	TypeSchm: true, TypeTenc: true, TypePssh: true,
	TypeIloc: true, TypeIinf: true, TypeInfe: true, TypePitm: true,
	TypeIref: true, TypeIpma: true, TypeIspe: true,
}

// IsFullBox reports whether t's payload begins with version+flags.
func IsFullBox(t BoxType) bool { return fullBoxTypes[t] }

// containerBoxTypes lists box types whose payload is itself a plain box
// sequence, with no fixed preamble beyond an optional FullBox header.
// Containers with extra preamble fields (stsd, dref, stsd's sample
// entries, ipco's children) are NOT listed here — they get dedicated
// parsers that consume their preamble and then recurse explicitly.
var containerBoxTypes = map[BoxType]bool{
	TypeMoov: true, TypeTrak: true, TypeEdts: true, TypeMdia: true,
	TypeMinf: true, TypeDinf: true, TypeStbl: true, TypeUdta: true,
	TypeMvex: true, TypeMoof: true, TypeTraf: true, TypeTref: true,
	TypeTrgr: true, TypeMfra: true, TypeSinf: true, TypeSchi: true,
	TypeIpro: true, TypeWave: true, TypeIprp: true, TypeIpco: true,
	TypeIlst: true,
	TypeQtNam: true, TypeQtArt: true, TypeQtAlb: true, TypeQtDay: true,
	TypeQtCmt: true, TypeQtGen: true, TypeQtWrt: true, TypeQtToo: true,
}

// IsContainerBox reports whether t is a plain box-sequence container.
func IsContainerBox(t BoxType) bool { return containerBoxTypes[t] }

// humanNames supplies the "HumanName" used in the emitter's box header line
// (spec.md §6: "[type] HumanName @ ..."). Types with no entry render their
// own four characters as the human name.
var humanNames = map[BoxType]string{
	TypeFtyp: "FileType", TypeStyp: "SegmentType",
	TypeMoov: "Movie", TypeMvhd: "MovieHeader", TypeTrak: "Track",
	TypeTkhd: "TrackHeader", TypeTref: "TrackReference", TypeTrgr: "TrackGroup",
	TypeEdts: "EditList", TypeElst: "EditListEntries",
	TypeMdia: "Media", TypeMdhd: "MediaHeader", TypeHdlr: "HandlerReference",
	TypeElng: "ExtendedLanguage",
	TypeMinf: "MediaInformation", TypeVmhd: "VideoMediaHeader",
	TypeSmhd: "SoundMediaHeader", TypeHmhd: "HintMediaHeader",
	TypeSthd: "SubtitleMediaHeader", TypeNmhd: "NullMediaHeader",
	TypeDinf: "DataInformation", TypeDref: "DataReference",
	TypeUrl: "DataEntryUrl", TypeUrn: "DataEntryUrn",
	TypeStbl: "SampleTable", TypeStsd: "SampleDescription",
	TypeStts: "TimeToSample", TypeCtts: "CompositionOffset",
	TypeCslg: "CompositionToDecode", TypeStsc: "SampleToChunk",
	TypeStsz: "SampleSize", TypeStz2: "CompactSampleSize",
	TypeStco: "ChunkOffset", TypeCo64: "ChunkOffset64",
	TypeStss: "SyncSampleTable", TypeStsh: "ShadowSyncSampleTable",
	TypePadb: "PaddingBits", TypeStdp: "DegradationPriority",
	TypeSdtp: "SampleDependency", TypeSbgp: "SampleToGroup",
	TypeSgpd: "SampleGroupDescription", TypeSubs: "SubSampleInformation",
	TypeSaiz: "SampleAuxInfoSizes", TypeSaio: "SampleAuxInfoOffsets",
	TypeMvex: "MovieExtends", TypeMehd: "MovieExtendsHeader",
	TypeTrex: "TrackExtends", TypeLeva: "LevelAssignment",
	TypeMoof: "MovieFragment", TypeMfhd: "MovieFragmentHeader",
	TypeTraf: "TrackFragment", TypeTfhd: "TrackFragmentHeader",
	TypeTfdt: "TrackFragmentDecodeTime", TypeTrun: "TrackRun",
	TypeSidx: "SegmentIndex", TypeSsix: "SubsegmentIndex",
	TypeEmsg: "EventMessage", TypeMfra: "MovieFragmentRandomAccess",
	TypeTfra: "TrackFragmentRandomAccess", TypeMfro: "MfraOffset",
	TypeSenc: "SampleEncryption",
	TypeSinf: "ProtectionScheme", TypeFrma: "OriginalFormat",
	TypeSchm: "SchemeType", TypeSchi: "SchemeInformation",
	TypeTenc: "TrackEncryption", TypePssh: "ProtectionSystemSpecificHeader",
	TypeIpro: "ItemProtection",
	TypeMeta: "Metadata", TypeUdta: "UserData", TypeIlst: "ItemList",
	TypeMdat: "MediaData", TypeFree: "FreeSpace", TypeSkip: "FreeSpace",
	TypeWide: "Placeholder",
	TypeAvc1: "AVCVisualSampleEntry", TypeAvc3: "AVCVisualSampleEntry",
	TypeAvcC: "AVCConfiguration",
	TypeHvc1: "HEVCVisualSampleEntry", TypeHev1: "HEVCVisualSampleEntry",
	TypeHvcC: "HEVCConfiguration", TypeEncv: "EncryptedVisualSampleEntry",
	TypeBtrt: "BitRate", TypePasp: "PixelAspectRatio", TypeColr: "ColourInformation",
	TypeMp4a: "MPEG4AudioSampleEntry", TypeEnca: "EncryptedAudioSampleEntry",
	TypeEsds: "ESDescriptorBox", TypeIods: "InitialObjectDescriptor",
	TypeWave: "SoundInformation", TypeMp4v: "MPEG4VisualSampleEntry",
	TypeTx3g: "TimedTextSampleEntry", TypeMp4s: "MPEG4SystemsSampleEntry",
	TypeIloc: "ItemLocation", TypeIinf: "ItemInfo", TypeInfe: "ItemInfoEntry",
	TypePitm: "PrimaryItem", TypeIref: "ItemReference",
	TypeIprp: "ItemProperties", TypeIpco: "ItemPropertyContainer",
	TypeIpma: "ItemPropertyAssociation", TypeIdat: "ItemData",
	TypeIrot: "ImageRotation", TypeImir: "ImageMirror", TypeIspe: "ImageSpatialExtents",
	TypeUuid: "ExtendedType",
	TypeQtNam: "Name", TypeQtArt: "Artist", TypeQtAlb: "Album", TypeQtDay: "Date",
	TypeQtCmt: "Comment", TypeQtGen: "Genre", TypeQtWrt: "Writer", TypeQtToo: "Encoder",
}

// HumanName returns the descriptive name printed next to t in a box header
// line, falling back to t's own four characters.
func HumanName(t BoxType) string {
	if n, ok := humanNames[t]; ok {
		return n
	}
	return t.String()
}

// Header describes the framing of one box as read from the wire: spec.md
// §3's "offset / header_size / size / type / payload_range" data model.
type Header struct {
	Offset       int64   // absolute position of the first header byte
	HeaderSize   int     // 8 or 16 (largesize), plus 16 for uuid
	Size         int64   // total size including header; already resolved if size was 0
	Type         BoxType // four-character type, or "uuid" with ExtendedType set
	ExtendedType [16]byte
	IsUUID       bool
}

// PayloadStart returns the absolute offset of the first payload byte.
func (h Header) PayloadStart() int64 { return h.Offset + int64(h.HeaderSize) }

// PayloadEnd returns the absolute offset just past the box's last byte.
func (h Header) PayloadEnd() int64 { return h.Offset + h.Size }

// PayloadLen returns PayloadEnd - PayloadStart.
func (h Header) PayloadLen() int64 { return h.Size - int64(h.HeaderSize) }

func (h Header) String() string {
	if h.IsUUID {
		return fmt.Sprintf("uuid %x", h.ExtendedType)
	}
	return h.Type.String()
}
