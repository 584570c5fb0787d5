// Package dispatch implements the request dispatcher (§4.2): the opcode
// table, the request/response wire codec, and the per-session state
// machine that turns a framed (opcode, payload) pair into calls against
// the vfs façade. It is grounded on rclone's fs/rc, which plays the same
// role for rclone's own remote-control protocol — a name/opcode keyed
// table of handlers, each decoding its own payload shape and returning a
// typed result that a thin transport layer then serialises.
package dispatch

// Request opcodes (§6.1). Two reserved ranges (0x00/0x01/0x7F/0xFF) never
// reach here — the transport layer intercepts them as link-level framing.
const (
	ReqGetROM              = 0x02
	ReqReset                = 0x03
	ReqEchoData             = 0x04
	ReqReadString           = 0x05
	ReqStarCat              = 0x06
	ReqStarRun              = 0x09
	ReqStarCommand          = 0x0A
	ReqOSFILE               = 0x0B
	ReqOSFINDOpen           = 0x0C
	ReqOSFINDClose          = 0x0D
	ReqOSARGS               = 0x0E
	ReqEOF                  = 0x0F
	ReqOSBGET               = 0x10
	ReqOSBPUT               = 0x11
	ReqOSGBPB               = 0x14
	ReqOPT                  = 0x15
	ReqBootOption           = 0x16
	ReqVolumeBrowser        = 0x17
	ReqSpeedTest            = 0x18
	ReqSetFileHandleRange   = 0x1A
	ReqWrapped              = 0x20
	ReqReadDiskImage        = 0x21
	ReqWriteDiskImage       = 0x22
	ReqReadStringVerbose    = 0x08
)

// Response opcodes (§6.1).
const (
	RespYes            = 0x01
	RespNo             = 0x02
	RespData           = 0x03
	RespError          = 0x04
	RespText           = 0x05
	RespRun            = 0x06
	RespOSFILE         = 0x07
	RespOSFIND         = 0x08
	RespOSARGS         = 0x09
	RespEOF            = 0x0A
	RespOSBGET         = 0x0B
	RespOSBGETEOF      = 0x0C
	RespOSGBPB         = 0x0D
	RespBootOption     = 0x0E
	RespSpecial        = 0x0F
	RespVolumeBrowser  = 0x10
)

// osfileSubcommand values, carried in the OSFILE request's A register
// (§6.2).
const (
	OSFILESave      = 0
	OSFILEWriteCat  = 1
	OSFILEWriteLoad = 2
	OSFILEWriteExec = 3
	OSFILEWriteAttr = 4
	OSFILEReadCat   = 5
	OSFILEDelete    = 6
	OSFILECreate    = 7
	OSFILELoad      = 255
)

// gbpbOp values, carried in the OSGBPB request's A register (§6.3).
const (
	GBPBWritePtr      = 1
	GBPBWriteNoPtr    = 2
	GBPBReadPtr       = 3
	GBPBReadNoPtr     = 4
	GBPBGetTitleBoot  = 5
	GBPBGetCurrentDir = 6
	GBPBGetLibDir     = 7
	GBPBEnumerate     = 8
)
