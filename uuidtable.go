package bmff

import "fmt"

// uuidVendors looks up a 16-byte extended type (uuid box) or pssh SystemID
// against the well-known DRM/vendor table named in spec.md §4.3/§8. Keys
// are the canonical lowercase hex string with dashes, matching how the
// spec's worked examples write them.
var uuidVendors = map[string]string{
	"edef8ba9-79d6-4ace-a3c8-27dcd51d21ed": "Widevine Content Protection",
	"9a04f079-9840-4286-ab92-e65be0885f95": "Microsoft PlayReady",
	"94ce86fb-07ff-4f43-adb8-93d2fa968ca2": "Apple FairPlay",
	"f239e769-efa3-4850-9c16-a903c6932efb": "Adobe Primetime DRM",
	"616c7469-6361-7374-2d50-726f74656374": "Alticast",
	"5e629af5-38da-4063-8977-97ffbd9902d4": "Marlin Adobe Flash Access",
	"e2719d58-a985-b3c9-781a-b030af78d30e": "ClearKey (DASH-IF)",
}

// uuidString formats a 16-byte extended type as canonical dashed hex.
func uuidString(b [16]byte) string {
	return fmt.Sprintf("%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:16])
}

// VendorName looks up a uuid/SystemID against the well-known vendor table,
// returning "" when it is not one of the recognized values.
func VendorName(b [16]byte) string {
	return uuidVendors[uuidString(b)]
}
