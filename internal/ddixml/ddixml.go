// Package ddixml parses DDI codebook XML into the codebook model.
package ddixml

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/microdatatools/goddi/codebook"
)

// defaultEncoding is the IPUMS extract default when the DDI omits a charset.
const defaultEncoding = "iso-8859-1"

// Parse reads a DDI codebook document. Structural problems return an
// error wrapping codebook.ErrMalformedCodebook and no partial result.
func Parse(r io.Reader) (*codebook.Codebook, error) {
	root, err := parseTree(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", codebook.ErrMalformedCodebook, err)
	}

	// The namespace is whatever URI the root element carries; every
	// element lookup below is resolved against it.
	ns := root.space

	fileTxts := root.findAll(ns, "fileDscr", "fileTxt")
	if len(fileTxts) != 1 {
		return nil, fmt.Errorf("%w: found %d file description blocks, want exactly 1",
			codebook.ErrMalformedCodebook, len(fileTxts))
	}

	fd, err := readFileDescription(fileTxts[0], ns)
	if err != nil {
		return nil, err
	}

	var vars []codebook.VariableDescription
	for _, elt := range root.findAll(ns, "dataDscr", "var") {
		vd, err := readVariable(elt, ns)
		if err != nil {
			return nil, err
		}
		vars = append(vars, vd)
	}

	if fd.Structure == codebook.StructureHierarchical {
		if fd.RecordTypeVar == "" {
			return nil, fmt.Errorf("%w: hierarchical structure declared but no record-type variable",
				codebook.ErrMalformedCodebook)
		}
		if _, ok := findVar(vars, fd.RecordTypeVar); !ok {
			return nil, fmt.Errorf("%w: record-type variable %s has no description",
				codebook.ErrMalformedCodebook, fd.RecordTypeVar)
		}
	}

	cb := &codebook.Codebook{
		FileDescription: fd,
		Variables:       vars,
	}
	readStudyMetadata(root, ns, cb)
	return cb, nil
}

func findVar(vars []codebook.VariableDescription, name string) (*codebook.VariableDescription, bool) {
	for i := range vars {
		if vars[i].Name == name {
			return &vars[i], true
		}
	}
	return nil, false
}

func readFileDescription(elt *element, ns string) (codebook.FileDescription, error) {
	var fd codebook.FileDescription

	strc := elt.find(ns, "fileStrc")
	if strc == nil {
		return fd, fmt.Errorf("%w: file description has no fileStrc element", codebook.ErrMalformedCodebook)
	}
	structure, err := codebook.ParseStructure(strc.attr("type"))
	if err != nil {
		return fd, err
	}
	fd.Structure = structure

	for _, grp := range strc.findAll(ns, "recGrp") {
		if rt := grp.attr("rectype"); rt != "" {
			fd.RecordTypes = append(fd.RecordTypes, rt)
		}
	}
	// The id and key variables are the same across record groups in
	// every collection, so the first group is authoritative.
	if grp := strc.find(ns, "recGrp"); grp != nil {
		fd.RecordTypeVar = grp.attr("recidvar")
		fd.RecordTypeKeyVar = grp.attr("keyvar")
	}

	fd.Filename = elt.text(ns, "fileName")
	fd.Description = elt.text(ns, "fileCont")
	fd.Format = elt.text(ns, "format")
	fd.Place = elt.text(ns, "filePlac")

	fd.Encoding = defaultEncoding
	if ft := elt.find(ns, "fileType"); ft != nil {
		if cs := ft.attr("charset"); cs != "" {
			fd.Encoding = strings.ToLower(cs)
		}
	}
	return fd, nil
}

func readVariable(elt *element, ns string) (codebook.VariableDescription, error) {
	var vd codebook.VariableDescription

	vd.ID = elt.attr("ID")
	vd.Name = elt.attr("name")
	if vd.Name == "" {
		return vd, fmt.Errorf("%w: variable element without a name", codebook.ErrMalformedCodebook)
	}
	if vd.ID == "" {
		vd.ID = vd.Name
	}

	// rectype only appears on hierarchical extracts; its absence means
	// the variable applies to every record type.
	if rt := elt.attr("rectype"); rt != "" {
		vd.RecordTypes = strings.Fields(rt)
	}

	format := elt.find(ns, "varFormat")
	if format == nil {
		return vd, fmt.Errorf("%w: variable %s has no varFormat element", codebook.ErrMalformedCodebook, vd.Name)
	}
	switch format.attr("type") {
	case "numeric":
		vd.Type = codebook.DeclaredNumeric
	case "character":
		vd.Type = codebook.DeclaredCharacter
	default:
		return vd, fmt.Errorf("%w: variable %s has unknown format type %q",
			codebook.ErrMalformedCodebook, vd.Name, format.attr("type"))
	}

	loc := elt.find(ns, "location")
	if loc == nil {
		return vd, fmt.Errorf("%w: variable %s has no location element", codebook.ErrMalformedCodebook, vd.Name)
	}
	start, err := atoiAttr(loc, "StartPos", vd.Name)
	if err != nil {
		return vd, err
	}
	end, err := atoiAttr(loc, "EndPos", vd.Name)
	if err != nil {
		return vd, err
	}
	// The DDI records 1-based inclusive positions; subtracting one from
	// the start alone yields a 0-based half-open range.
	vd.Start = start - 1
	vd.End = end
	if vd.Start < 0 || vd.Start >= vd.End {
		return vd, fmt.Errorf("%w: variable %s has invalid position range %d-%d",
			codebook.ErrMalformedCodebook, vd.Name, start, end)
	}

	if dcml := elt.attr("dcml"); dcml != "" {
		shift, err := strconv.Atoi(dcml)
		if err != nil || shift < 0 {
			return vd, fmt.Errorf("%w: variable %s has invalid decimal shift %q",
				codebook.ErrMalformedCodebook, vd.Name, dcml)
		}
		vd.DecimalShift = shift
	}

	vd.Label = elt.text(ns, "labl")
	vd.Description = elt.text(ns, "txt")
	vd.Concept = elt.text(ns, "concept")
	vd.Notes = elt.text(ns, "notes")

	for _, cat := range elt.findAll(ns, "catgry") {
		label := cat.text(ns, "labl")
		raw := cat.text(ns, "catValu")
		var value any = raw
		if vd.Type == codebook.DeclaredNumeric {
			if iv, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64); err == nil {
				value = iv
			}
		}
		vd.ValueLabels = append(vd.ValueLabels, codebook.ValueLabel{Label: label, Value: value})
	}

	return vd, nil
}

// readStudyMetadata pulls citation and sample metadata out of the study
// description. The blocks are optional; drifted or missing metadata
// leaves empty fields rather than failing the parse.
func readStudyMetadata(root *element, ns string, cb *codebook.Codebook) {
	for _, note := range root.findAll(ns, "stdyDscr", "stdyInfo", "notes") {
		line, _, _ := strings.Cut(strings.TrimSpace(note.content), "\n")
		if i := strings.LastIndex(line, ":"); i >= 0 {
			line = line[i+1:]
		}
		if line = strings.TrimSpace(line); line != "" {
			cb.SampleDescriptions = append(cb.SampleDescriptions, line)
		}
	}

	if stdy := root.find(ns, "stdyDscr"); stdy != nil {
		if access := stdy.find(ns, "dataAccs"); access != nil {
			if use := access.find(ns, "useStmt"); use != nil {
				cb.Citation = use.text(ns, "citReq")
				cb.Conditions = use.text(ns, "conditions")
			}
		}
		if cit := stdy.find(ns, "citation"); cit != nil {
			if ser := cit.find(ns, "serStmt"); ser != nil {
				if name := ser.find(ns, "serName"); name != nil {
					cb.Collection = name.attr("abbr")
				}
				cb.DOI = ser.text(ns, "serInfo")
			}
		}
	}
}

func atoiAttr(e *element, name, variable string) (int, error) {
	raw := e.attr(name)
	if raw == "" {
		return 0, fmt.Errorf("%w: variable %s location has no %s attribute",
			codebook.ErrMalformedCodebook, variable, name)
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: variable %s has non-numeric %s %q",
			codebook.ErrMalformedCodebook, variable, name, raw)
	}
	return v, nil
}

// element is a minimal DOM node. encoding/xml resolves namespace
// prefixes to URIs in Name.Space, so matching is done on (URI, local).
type element struct {
	space, local string
	attrs        []xml.Attr
	content      string
	children     []*element
}

func parseTree(r io.Reader) (*element, error) {
	dec := xml.NewDecoder(r)
	var stack []*element
	var root *element

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			e := &element{space: t.Name.Space, local: t.Name.Local, attrs: t.Attr}
			if len(stack) == 0 {
				if root != nil {
					return nil, fmt.Errorf("multiple root elements")
				}
				root = e
			} else {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, e)
			}
			stack = append(stack, e)
		case xml.EndElement:
			if len(stack) == 0 {
				return nil, fmt.Errorf("unbalanced end element %s", t.Name.Local)
			}
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].content += string(t)
			}
		}
	}
	if root == nil {
		return nil, fmt.Errorf("document has no root element")
	}
	if len(stack) != 0 {
		return nil, fmt.Errorf("unterminated element %s", stack[len(stack)-1].local)
	}
	return root, nil
}

func (e *element) matches(ns, local string) bool {
	return e.local == local && (e.space == ns || e.space == "")
}

// find returns the first descendant matching the path of local names,
// resolved against the document namespace.
func (e *element) find(ns string, path ...string) *element {
	all := e.findAll(ns, path...)
	if len(all) == 0 {
		return nil
	}
	return all[0]
}

// findAll returns every element matching the path of local names, in
// document order.
func (e *element) findAll(ns string, path ...string) []*element {
	current := []*element{e}
	for _, name := range path {
		var next []*element
		for _, c := range current {
			for _, child := range c.children {
				if child.matches(ns, name) {
					next = append(next, child)
				}
			}
		}
		current = next
	}
	return current
}

// attr returns the named attribute, ignoring namespace prefixes.
func (e *element) attr(name string) string {
	for _, a := range e.attrs {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

// text returns the trimmed character data of the first child matching
// path, or "" if absent.
func (e *element) text(ns string, path ...string) string {
	child := e.find(ns, path...)
	if child == nil {
		return ""
	}
	return strings.TrimSpace(child.content)
}
