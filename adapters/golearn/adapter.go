// Package golearn converts between forestfill Frames and golearn
// base.DenseInstances, so an imputed dataset can feed golearn models
// directly. golearn instances cannot represent missing values, which is why
// conversion normally happens after imputation.
package golearn

import (
	"github.com/sjwhitworth/golearn/base"

	ff "github.com/wdm0006/forestfill/pkg/forestfill"
)

// ToDenseInstances converts a complete Frame into golearn DenseInstances and
// marks the named column as the class attribute.
func ToDenseInstances(f *ff.Frame, class string) (*base.DenseInstances, error) {
	attrs := make([]base.Attribute, len(f.Schema().Columns))
	classIdx := len(attrs) - 1
	for i, cs := range f.Schema().Columns {
		switch cs.Type {
		case ff.KindFloat, ff.KindInt:
			attrs[i] = base.NewFloatAttribute(cs.Name)
		default:
			ca := new(base.CategoricalAttribute)
			ca.SetName(cs.Name)
			attrs[i] = ca
		}
		if cs.Name == class {
			classIdx = i
		}
	}
	inst := base.NewDenseInstances()
	specs := make([]base.AttributeSpec, len(attrs))
	for i, a := range attrs {
		specs[i] = inst.AddAttribute(a)
	}
	if err := inst.Extend(f.Rows()); err != nil {
		return nil, err
	}

	for r := 0; r < f.Rows(); r++ {
		for c, cs := range f.Schema().Columns {
			col, _ := f.ColumnByName(cs.Name)
			switch cc := col.(type) {
			case *ff.FloatColumn:
				if v, ok := cc.Get(r); ok {
					inst.Set(specs[c], r, base.PackFloatToBytes(v))
				}
			case *ff.IntColumn:
				if v, ok := cc.Get(r); ok {
					inst.Set(specs[c], r, base.PackFloatToBytes(float64(v)))
				}
			case *ff.StringColumn:
				if v, ok := cc.Get(r); ok {
					inst.Set(specs[c], r, base.Attribute.GetSysValFromString(attrs[c], v))
				}
			}
		}
	}
	if err := inst.AddClassAttribute(attrs[classIdx]); err != nil {
		return nil, err
	}
	return inst, nil
}

// FromDenseInstances converts golearn DenseInstances into a Frame. Float
// attributes become float columns, everything else strings.
func FromDenseInstances(inst *base.DenseInstances) (*ff.Frame, error) {
	attrs := inst.AllAttributes()
	schema := ff.Schema{Columns: make([]ff.ColumnSchema, len(attrs))}
	specs := make([]base.AttributeSpec, len(attrs))
	for i, a := range attrs {
		k := ff.KindString
		if _, ok := a.(*base.FloatAttribute); ok {
			k = ff.KindFloat
		}
		schema.Columns[i] = ff.ColumnSchema{Name: a.GetName(), Type: k}
		spec, err := inst.GetAttribute(a)
		if err != nil {
			return nil, err
		}
		specs[i] = spec
	}
	f := ff.NewFrame(schema)
	_, nrows := inst.Size()
	for r := 0; r < nrows; r++ {
		f.AppendNullRow()
		for c, cs := range schema.Columns {
			raw := inst.Get(specs[c], r)
			if cs.Type == ff.KindFloat {
				_ = f.SetCell(r, cs.Name, base.UnpackBytesToFloat(raw))
			} else {
				_ = f.SetCell(r, cs.Name, base.Attribute.GetStringFromSysVal(specs[c].GetAttribute(), raw))
			}
		}
	}
	return f, nil
}
