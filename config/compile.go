package config

import (
	"github.com/wippyai/rotable"
	"github.com/wippyai/rotable/layout"
)

// ModuleImage is a compiled table module.
type ModuleImage struct {
	Name  string
	Image layout.Image
}

// Compiled holds the images produced from a Config.
type Compiled struct {
	// ROM holds the static tables. Its root is the table of globals
	// mapping each static table name to the table.
	ROM     layout.Image
	Modules []ModuleImage
}

// Compile builds the ROM image and one image per module.
func (c *Config) Compile() (*Compiled, error) {
	rom, err := c.compileROM()
	if err != nil {
		return nil, err
	}
	out := &Compiled{ROM: rom}
	for _, m := range c.Modules {
		img, err := c.compileModule(m)
		if err != nil {
			return nil, err
		}
		out.Modules = append(out.Modules, ModuleImage{Name: m.Name, Image: img})
	}
	return out, nil
}

func (c *Config) compileROM() (layout.Image, error) {
	b := layout.NewBuilder(rotable.Address(c.ROM.Base)).WithMaxKeyLen(c.MaxNameLen)

	named := make(map[string]*layout.TableBuilder, len(c.Static))
	for _, t := range c.Static {
		named[t.Name] = b.Table().Named(t.Name)
	}
	for _, t := range c.Static {
		fill(b, named[t.Name], t.Entries, named)
	}

	globals := b.Table().Named("globals")
	for _, t := range c.Static {
		globals.Set(layout.StringKey(t.Name), layout.Ref(named[t.Name]))
	}
	return b.Build(globals)
}

func (c *Config) compileModule(m Module) (layout.Image, error) {
	b := layout.NewBuilder(rotable.Address(m.Origin)).WithMaxKeyLen(c.MaxNameLen)

	root := b.Table().Named(m.Name)
	named := make(map[string]*layout.TableBuilder, len(m.Tables))
	for _, t := range m.Tables {
		named[t.Name] = b.Table().Named(m.Name + "." + t.Name)
	}
	fill(b, root, m.Entries, named)
	for _, t := range m.Tables {
		fill(b, named[t.Name], t.Entries, named)
	}
	return b.Build(root)
}

// fill appends entries to t. Builder errors are collected by b and
// surface from Build.
func fill(b *layout.Builder, t *layout.TableBuilder, entries []Entry, named map[string]*layout.TableBuilder) {
	for i := range entries {
		e := &entries[i]
		var k layout.Key
		if e.Key != nil {
			k = layout.StringKey(*e.Key)
		} else if e.Index != nil {
			k = layout.NumberKey(*e.Index)
		}
		t.Set(k, value(b, e, named))
	}
}

func value(b *layout.Builder, e *Entry, named map[string]*layout.TableBuilder) layout.Value {
	switch {
	case e.Number != nil:
		return layout.Number(*e.Number)
	case e.Bool != nil:
		return layout.Bool(*e.Bool)
	case e.String != nil:
		return layout.String(*e.String)
	case e.Func != nil:
		return layout.Func(*e.Func)
	case e.Ref != nil:
		return layout.Ref(named[*e.Ref])
	case e.Table != nil:
		inner := b.Table()
		fill(b, inner, *e.Table, named)
		return layout.Ref(inner)
	case e.Pointer != nil:
		return layout.Pointer(rotable.Address(*e.Pointer))
	}
	return layout.Nil()
}
