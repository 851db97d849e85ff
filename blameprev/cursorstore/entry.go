package cursorstore

import (
	"github.com/disciplesalmon/blame-previous/blameprev/provenance"
	"github.com/tinylib/msgp/msgp"
)

// Entry is one cursor on the stack.
type Entry struct {
	Path     string `msg:"p"`
	Revision string `msg:"r"`
	Line     int    `msg:"l"`
	// Created is unix seconds.
	Created int64 `msg:"c"`
}

func NewEntry(c provenance.LineCursor, created int64) Entry {
	return Entry{Path: c.File.Path, Revision: string(c.File.Revision), Line: c.Line, Created: created}
}

func (z Entry) Cursor() provenance.LineCursor {
	return provenance.LineCursor{
		File: provenance.FileLocator{Path: z.Path, Revision: provenance.Revision(z.Revision)},
		Line: z.Line,
	}
}

// EncodeMsg implements msgp.Encodable
func (z *Entry) EncodeMsg(en *msgp.Writer) (err error) {
	// map header, size 4
	err = en.WriteMapHeader(4)
	if err != nil {
		return
	}
	err = en.WriteString("p")
	if err != nil {
		return
	}
	err = en.WriteString(z.Path)
	if err != nil {
		err = msgp.WrapError(err, "Path")
		return
	}
	err = en.WriteString("r")
	if err != nil {
		return
	}
	err = en.WriteString(z.Revision)
	if err != nil {
		err = msgp.WrapError(err, "Revision")
		return
	}
	err = en.WriteString("l")
	if err != nil {
		return
	}
	err = en.WriteInt(z.Line)
	if err != nil {
		err = msgp.WrapError(err, "Line")
		return
	}
	err = en.WriteString("c")
	if err != nil {
		return
	}
	err = en.WriteInt64(z.Created)
	if err != nil {
		err = msgp.WrapError(err, "Created")
		return
	}
	return
}

// DecodeMsg implements msgp.Decodable
func (z *Entry) DecodeMsg(dc *msgp.Reader) (err error) {
	var field []byte
	var zb0001 uint32
	zb0001, err = dc.ReadMapHeader()
	if err != nil {
		err = msgp.WrapError(err)
		return
	}
	for zb0001 > 0 {
		zb0001--
		field, err = dc.ReadMapKeyPtr()
		if err != nil {
			err = msgp.WrapError(err)
			return
		}
		switch msgp.UnsafeString(field) {
		case "p":
			z.Path, err = dc.ReadString()
			if err != nil {
				err = msgp.WrapError(err, "Path")
				return
			}
		case "r":
			z.Revision, err = dc.ReadString()
			if err != nil {
				err = msgp.WrapError(err, "Revision")
				return
			}
		case "l":
			z.Line, err = dc.ReadInt()
			if err != nil {
				err = msgp.WrapError(err, "Line")
				return
			}
		case "c":
			z.Created, err = dc.ReadInt64()
			if err != nil {
				err = msgp.WrapError(err, "Created")
				return
			}
		default:
			err = dc.Skip()
			if err != nil {
				err = msgp.WrapError(err)
				return
			}
		}
	}
	return
}
