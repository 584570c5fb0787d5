package dispatch

import (
	"context"
	"fmt"
	"strings"

	"github.com/tom-seddon/beeblink-sub000/bbcpath"
	"github.com/tom-seddon/beeblink-sub000/beeberror"
	"github.com/tom-seddon/beeblink-sub000/infcodec"
	"github.com/tom-seddon/beeblink-sub000/session"
	"github.com/tom-seddon/beeblink-sub000/transport"
	"github.com/tom-seddon/beeblink-sub000/volume"
	"github.com/tom-seddon/beeblink-sub000/volume/tubehost"
)

// handleStarCat implements the STAR_CAT opcode (§6.1): render the current
// directory's listing into s.ServerString, which subsequent READ_STRING
// calls then drain a page at a time.
func (d *Dispatcher) handleStarCat(ctx context.Context, s *session.Session, payload []byte) (transport.Packet, error) {
	cmdline := strings.TrimSpace(string(payload))

	v, dir, err := d.resolveDir(ctx, s, cmdline)
	if err != nil {
		return transport.Packet{}, err
	}
	objects, title, err := v.Type.Cat(ctx, v, dir)
	if err != nil {
		return transport.Packet{}, err
	}
	s.ServerString = renderCat(v, objects, title)
	return transport.Packet{Type: RespYes}, nil
}

func renderCat(v *volume.Volume, objects []*volume.FSObject, title string) string {
	var sb strings.Builder
	if title != "" {
		sb.WriteString(title)
		sb.WriteString("\r\n")
	}
	sb.WriteString(fmt.Sprintf("Volume :%s\r\n", v.Name))
	for i, o := range objects {
		name := o.FQN.Name
		if o.Type == volume.ObjectDir {
			name += " D"
		} else if o.Attr&infcodec.AttrLocked != 0 {
			name += " L"
		}
		sb.WriteString(name)
		if i != len(objects)-1 {
			sb.WriteString("  ")
		}
	}
	sb.WriteString("\r\n")
	return sb.String()
}

// handleStarCommand implements STAR_RUN/STAR_COMMAND (§6.1): the server
// recognises a small set of built-in commands (volume/drive/dir selection,
// the ADFS *BACK toggle, the TubeHost changer commands, *INFO/*EX and
// *LOCATE) and reports everything else as either RUN (a file to *RUN) or a
// BadCommand error.
func (d *Dispatcher) handleStarCommand(ctx context.Context, s *session.Session, payload []byte, isRun bool) (transport.Packet, error) {
	cmdline := strings.TrimSpace(string(payload))
	if cmdline == "" {
		return transport.Packet{}, beeberror.Default(beeberror.KindBadCommand)
	}

	if isRun {
		return d.starRun(ctx, s, cmdline)
	}

	fields := strings.Fields(cmdline)
	verb := strings.ToUpper(strings.TrimPrefix(fields[0], "*"))
	args := fields[1:]

	switch verb {
	case "VOLUME":
		return d.starVolume(ctx, s, args)
	case "DRIVE":
		return d.starDrive(s, args)
	case "DIR":
		return d.starDir(ctx, s, args)
	case "LIB":
		return d.starLib(ctx, s, args)
	case "BACK":
		return d.starBack(s)
	case "DIN":
		return d.starDin(ctx, s, args)
	case "DOUT":
		return d.starDout(ctx, s, args)
	case "DCAT":
		return d.starDcat(ctx, s)
	case "HCF":
		return d.starHcf(ctx, s, args)
	case "HMKF":
		return d.starHmkf(ctx, s, args)
	case "HFOLDERS":
		return d.starHfolders(ctx, s)
	case "DCREATE":
		return d.starDcreate(ctx, s, args)
	case "INFO", "EX":
		return d.starInfo(ctx, s, args)
	case "LOCATE":
		return d.starLocate(ctx, s, args)
	default:
		return d.starRun(ctx, s, cmdline)
	}
}

// starRun resolves a bare command line to a *RUN request (§6.1's RUN
// response carries the resolved FQN back for the client to actually load
// and execute).
func (d *Dispatcher) starRun(ctx context.Context, s *session.Session, cmdline string) (transport.Packet, error) {
	name := strings.Fields(cmdline)
	if len(name) == 0 {
		return transport.Packet{}, beeberror.Default(beeberror.KindBadCommand)
	}
	if s.Volume == nil {
		return transport.Packet{}, beeberror.Errorf(beeberror.KindDiscFault, "No volume")
	}
	if s.Volume.Type.Name() == "PC" {
		return transport.Packet{}, beeberror.Default(beeberror.KindNotSupported)
	}
	fqn, err := s.Volume.Type.ParseFile(s.Cur, name[0])
	if err != nil {
		return transport.Packet{}, err
	}
	obj, err := s.Volume.Type.GetObject(ctx, s.Volume, fqn, true)
	if err != nil {
		return transport.Packet{}, err
	}
	if obj == nil || obj.Type != volume.ObjectFile {
		return transport.Packet{}, beeberror.Default(beeberror.KindBadCommand)
	}
	return transport.Packet{Type: RespRun, Payload: []byte(obj.FQN.String())}, nil
}

func (d *Dispatcher) starVolume(ctx context.Context, s *session.Session, args []string) (transport.Packet, error) {
	if len(args) != 1 {
		return transport.Packet{}, beeberror.Default(beeberror.KindBadCommand)
	}
	v, err := d.resolveVolume(ctx, s, "::"+args[0]+":")
	if err != nil {
		return transport.Packet{}, err
	}
	s.Volume = v
	s.Cur = bbcpath.FilePath{Volume: v.Name, Drive: "0", Dir: "$"}
	s.Lib = s.Cur
	return transport.Packet{Type: RespYes}, nil
}

func (d *Dispatcher) starDrive(s *session.Session, args []string) (transport.Packet, error) {
	if len(args) != 1 {
		return transport.Packet{}, beeberror.Default(beeberror.KindBadCommand)
	}
	s.Cur.Drive = args[0]
	s.Cur.DriveExplicit = true
	return transport.Packet{Type: RespYes}, nil
}

func (d *Dispatcher) starDir(ctx context.Context, s *session.Session, args []string) (transport.Packet, error) {
	if len(args) != 1 || s.Volume == nil {
		return transport.Packet{}, beeberror.Default(beeberror.KindBadCommand)
	}
	fp, err := s.Volume.Type.ParseDir(s.Cur, args[0])
	if err != nil {
		return transport.Packet{}, err
	}
	s.PrevDir = s.Cur
	s.Cur = fp
	return transport.Packet{Type: RespYes}, nil
}

func (d *Dispatcher) starLib(ctx context.Context, s *session.Session, args []string) (transport.Packet, error) {
	if len(args) != 1 || s.Volume == nil {
		return transport.Packet{}, beeberror.Default(beeberror.KindBadCommand)
	}
	fp, err := s.Volume.Type.ParseDir(s.Cur, args[0])
	if err != nil {
		return transport.Packet{}, err
	}
	s.Lib = fp
	return transport.Packet{Type: RespYes}, nil
}

// starBack implements ADFS's *BACK (§4.4.2): swap the saved previous
// directory with the current one.
func (d *Dispatcher) starBack(s *session.Session) (transport.Packet, error) {
	s.Cur, s.PrevDir = s.PrevDir, s.Cur
	return transport.Packet{Type: RespYes}, nil
}

// tubeHostChanger narrows the current volume to the TubeHost changer
// capability, or reports NotSupported the way a DFS/ADFS/PC volume would
// (§4.4.3's changer commands are TubeHost-only).
func tubeHostChanger(s *session.Session) (tubehost.Changer, *volume.Volume, error) {
	if s.Volume == nil {
		return nil, nil, beeberror.Errorf(beeberror.KindDiscFault, "No volume")
	}
	c, ok := s.Volume.Type.(tubehost.Changer)
	if !ok {
		return nil, nil, beeberror.Default(beeberror.KindNotSupported)
	}
	return c, s.Volume, nil
}

func (d *Dispatcher) starDin(ctx context.Context, s *session.Session, args []string) (transport.Packet, error) {
	if len(args) != 2 {
		return transport.Packet{}, beeberror.Default(beeberror.KindBadCommand)
	}
	c, v, err := tubeHostChanger(s)
	if err != nil {
		return transport.Packet{}, err
	}
	if err := c.Insert(ctx, v, args[0], args[1]); err != nil {
		return transport.Packet{}, err
	}
	return transport.Packet{Type: RespYes}, nil
}

func (d *Dispatcher) starDout(ctx context.Context, s *session.Session, args []string) (transport.Packet, error) {
	if len(args) != 1 {
		return transport.Packet{}, beeberror.Default(beeberror.KindBadCommand)
	}
	c, v, err := tubeHostChanger(s)
	if err != nil {
		return transport.Packet{}, err
	}
	if err := c.Eject(ctx, v, args[0]); err != nil {
		return transport.Packet{}, err
	}
	return transport.Packet{Type: RespYes}, nil
}

func (d *Dispatcher) starDcat(ctx context.Context, s *session.Session) (transport.Packet, error) {
	c, v, err := tubeHostChanger(s)
	if err != nil {
		return transport.Packet{}, err
	}
	disks, err := c.ListDisks(ctx, v)
	if err != nil {
		return transport.Packet{}, err
	}
	s.ServerString = strings.Join(disks, "  ") + "\r\n"
	return transport.Packet{Type: RespYes}, nil
}

func (d *Dispatcher) starHcf(ctx context.Context, s *session.Session, args []string) (transport.Packet, error) {
	if len(args) != 1 {
		return transport.Packet{}, beeberror.Default(beeberror.KindBadCommand)
	}
	c, v, err := tubeHostChanger(s)
	if err != nil {
		return transport.Packet{}, err
	}
	if err := c.SetFolder(ctx, v, args[0]); err != nil {
		return transport.Packet{}, err
	}
	return transport.Packet{Type: RespYes}, nil
}

func (d *Dispatcher) starHmkf(ctx context.Context, s *session.Session, args []string) (transport.Packet, error) {
	_, _, err := tubeHostChanger(s)
	if err != nil {
		return transport.Packet{}, err
	}
	// Creating a new folder is a host-directory operation the Changer
	// capability does not expose (folders are discovered, not created, by
	// the adapter); report it the way the adapter reports any other
	// host-namespace mutation it does not support.
	return transport.Packet{}, beeberror.Default(beeberror.KindNotSupported)
}

func (d *Dispatcher) starHfolders(ctx context.Context, s *session.Session) (transport.Packet, error) {
	c, v, err := tubeHostChanger(s)
	if err != nil {
		return transport.Packet{}, err
	}
	folders, err := c.Folders(ctx, v)
	if err != nil {
		return transport.Packet{}, err
	}
	s.ServerString = strings.Join(folders, "  ") + "\r\n"
	return transport.Packet{Type: RespYes}, nil
}

// starInfo implements *INFO/*EX (§4.3's readInfo): print the FS-type's
// attribute-line rendering of one file, the way handleStarCat prints a
// directory listing.
func (d *Dispatcher) starInfo(ctx context.Context, s *session.Session, args []string) (transport.Packet, error) {
	if len(args) != 1 {
		return transport.Packet{}, beeberror.Default(beeberror.KindBadCommand)
	}
	v, fqn, err := d.resolveFile(ctx, s, args[0])
	if err != nil {
		return transport.Packet{}, err
	}
	line, err := v.Type.ReadInfo(ctx, v, fqn)
	if err != nil {
		return transport.Packet{}, err
	}
	s.ServerString = line + "\r\n"
	return transport.Packet{Type: RespYes}, nil
}

// starLocate implements *LOCATE (§4.3's locate(fqn)): search every
// discoverable volume for namePattern and print one line per match.
func (d *Dispatcher) starLocate(ctx context.Context, s *session.Session, args []string) (transport.Packet, error) {
	if len(args) != 1 {
		return transport.Packet{}, beeberror.Default(beeberror.KindBadCommand)
	}
	results, err := d.FC.Locate(ctx, d.Discoverer, args[0])
	if err != nil {
		return transport.Packet{}, err
	}
	var sb strings.Builder
	for _, r := range results {
		sb.WriteString(fmt.Sprintf("%-10s %s", r.Volume.Name, r.Object.FQN.String()))
		sb.WriteString("\r\n")
	}
	s.ServerString = sb.String()
	return transport.Packet{Type: RespYes}, nil
}

func (d *Dispatcher) starDcreate(ctx context.Context, s *session.Session, args []string) (transport.Packet, error) {
	if len(args) != 1 {
		return transport.Packet{}, beeberror.Default(beeberror.KindBadCommand)
	}
	c, v, err := tubeHostChanger(s)
	if err != nil {
		return transport.Packet{}, err
	}
	if err := c.CreateDisk(ctx, v, args[0]); err != nil {
		return transport.Packet{}, err
	}
	return transport.Packet{Type: RespYes}, nil
}
