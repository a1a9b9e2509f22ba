package plan

import (
	"fmt"
	"reflect"

	"struct-mapper/internal/collection"
	"struct-mapper/internal/common"
	"struct-mapper/internal/datasource"
	"struct-mapper/internal/diagnostic"
	"struct-mapper/internal/member"
	nodepkg "struct-mapper/node"
	"struct-mapper/primitive"
)

// keyFuncs extract comparable identity keys from source and target
// collection elements. Source keys are converted to the target key type.
type keyFuncs struct {
	name     string
	src, dst collection.KeyFunc[reflect.Value, any]
}

// identityKeys finds the identity member shared by two element types: the
// configured one, else the first of the identity names both types have.
func (cc *compilation) identityKeys(se, de reflect.Type) *keyFuncs {
	st, dt := member.Indirect(se), member.Indirect(de)
	if st.Kind() != reflect.Struct || dt.Kind() != reflect.Struct || primitive.IsScalar(st) || primitive.IsScalar(dt) {
		return nil
	}

	names := cc.settings.IdentityNames

	if name, ok := cc.rules.identity(dt); ok {
		names = []string{name}
	} else if name, ok := cc.rules.identity(st); ok {
		names = []string{name}
	}

	for _, name := range names {
		sf, ok := member.FieldByName(st, name)
		if !ok {
			continue
		}

		df, ok := member.FieldByName(dt, name)
		if !ok || !sf.Type.Comparable() || !df.Type.Comparable() {
			continue
		}

		var conv primitive.Func

		if !sf.Type.AssignableTo(df.Type) {
			if conv, _, ok = primitive.Converter(sf.Type, df.Type, cc.categories); !ok {
				continue
			}
		}

		return &keyFuncs{
			name: name,
			src:  keyFunc(member.Root(st).Append(sf), conv),
			dst:  keyFunc(member.Root(dt).Append(df), nil),
		}
	}

	return nil
}

// keyFunc reads a key member; zero keys identify nothing.
func keyFunc(local member.Qualified, conv primitive.Func) collection.KeyFunc[reflect.Value, any] {
	return func(v reflect.Value) (any, bool) {
		k, ok := local.Get(v)
		if !ok || k.IsZero() {
			return nil, false
		}

		if conv != nil {
			var err error
			if k, err = conv(k); err != nil {
				return nil, false
			}
		}

		return k.Interface(), true
	}
}

func elements(v reflect.Value) []reflect.Value {
	res := make([]reflect.Value, v.Len())
	for i := range res {
		res[i] = v.Index(i)
	}

	return res
}

// slice maps slices and arrays. Existing slices are reconciled with the
// source by identity key when the element types have one.
func (cc *compilation) slice(src, dst reflect.Type) (compiled, error) {
	elem, err := cc.compile(src.Elem(), dst.Elem(), nil)
	if err != nil {
		return compiled{}, err
	}

	keys := cc.identityKeys(src.Elem(), dst.Elem())
	simple := !isComplex(dst.Elem())
	label := common.TypeName(dst)

	mapElem := func(st *state, i int, s, d reflect.Value) (reflect.Value, error) {
		v, err := elem.fn(st, s, d)
		if err != nil {
			return reflect.Value{}, wrapErr(fmt.Sprintf("%s[%d]", label, i), err)
		}

		return v, nil
	}

	res := compiled{strategy: StrategySliceMap, unit: elem.unit}
	if keys != nil {
		res.note = "by " + keys.name
	}

	if dst.Kind() == reflect.Array {
		res.fn = func(st *state, s, d reflect.Value) (reflect.Value, error) {
			if isNil(s) {
				return cc.absent(d, dst), nil
			}

			out := reflect.New(dst).Elem()
			created := cc.rs == CreateNew || !d.IsValid()

			if !created {
				out.Set(d)
			}

			for i := range min(s.Len(), out.Len()) {
				var cur reflect.Value
				if !created {
					cur = out.Index(i)
				}

				v, err := mapElem(st, i, s.Index(i), cur)
				if err != nil {
					return reflect.Value{}, err
				}

				out.Index(i).Set(v)
			}

			return out, nil
		}

		return res, nil
	}

	create := func(st *state, s reflect.Value) (reflect.Value, error) {
		out := reflect.MakeSlice(dst, s.Len(), s.Len())

		for i := range s.Len() {
			v, err := mapElem(st, i, s.Index(i), reflect.Value{})
			if err != nil {
				return reflect.Value{}, err
			}

			out.Index(i).Set(v)
		}

		return out, nil
	}

	merge := func(st *state, s, d reflect.Value) (reflect.Value, error) {
		out := reflect.MakeSlice(dst, d.Len(), d.Len()+s.Len())
		reflect.Copy(out, d)

		if keys != nil {
			diff := collection.Reconcile(elements(s), elements(d), keys.src, keys.dst)

			for _, m := range diff.Matched {
				v, err := mapElem(st, m.Source.Index, m.Source.Value, out.Index(m.Target.Index))
				if err != nil {
					return reflect.Value{}, err
				}

				out.Index(m.Target.Index).Set(v)
			}

			for _, n := range diff.New {
				v, err := mapElem(st, n.Index, n.Value, reflect.Value{})
				if err != nil {
					return reflect.Value{}, err
				}

				out = reflect.Append(out, v)
			}

			return out, nil
		}

		for i := range s.Len() {
			v, err := mapElem(st, i, s.Index(i), reflect.Value{})
			if err != nil {
				return reflect.Value{}, err
			}

			if simple && containsEqual(out, v) {
				continue
			}

			out = reflect.Append(out, v)
		}

		return out, nil
	}

	overwrite := func(st *state, s, d reflect.Value) (reflect.Value, error) {
		existing := make(map[int]int, s.Len())

		if keys != nil {
			diff := collection.Reconcile(elements(s), elements(d), keys.src, keys.dst)
			for _, m := range diff.Matched {
				existing[m.Source.Index] = m.Target.Index
			}
		} else {
			for i := range min(s.Len(), d.Len()) {
				existing[i] = i
			}
		}

		out := reflect.MakeSlice(dst, s.Len(), s.Len())

		for i := range s.Len() {
			var cur reflect.Value
			if ti, ok := existing[i]; ok {
				cur = d.Index(ti)
			}

			v, err := mapElem(st, i, s.Index(i), cur)
			if err != nil {
				return reflect.Value{}, err
			}

			out.Index(i).Set(v)
		}

		return out, nil
	}

	res.fn = func(st *state, s, d reflect.Value) (reflect.Value, error) {
		if isNil(s) {
			return cc.absent(d, dst), nil
		}

		switch {
		case cc.rs == CreateNew || !d.IsValid() || d.IsNil():
			return create(st, s)
		case cc.rs == Merge:
			return merge(st, s, d)
		default:
			return overwrite(st, s, d)
		}
	}

	return res, nil
}

func containsEqual(list, v reflect.Value) bool {
	for i := range list.Len() {
		if reflect.DeepEqual(list.Index(i).Interface(), v.Interface()) {
			return true
		}
	}

	return false
}

// mapMap maps map entries with converted keys. Merge adds missing keys and
// descends into existing complex values; Overwrite also drops target keys
// the source does not have.
func (cc *compilation) mapMap(src, dst reflect.Type) (compiled, error) {
	key, err := cc.compile(src.Key(), dst.Key(), nil)
	if err != nil {
		return compiled{}, err
	}

	val, err := cc.compile(src.Elem(), dst.Elem(), nil)
	if err != nil {
		return compiled{}, err
	}

	simple := !isComplex(dst.Elem())
	label := common.TypeName(dst)

	return compiled{
		strategy: StrategyMapMap,
		unit:     val.unit,
		fn: func(st *state, s, d reflect.Value) (reflect.Value, error) {
			if s.IsNil() {
				return cc.absent(d, dst), nil
			}

			if v, ok := st.lookup(s, dst); ok {
				return v, nil
			}

			created := cc.rs == CreateNew || !d.IsValid() || d.IsNil()

			out := d
			if created {
				out = reflect.MakeMapWithSize(dst, s.Len())
			}

			st.remember(s, out)

			produced := make(map[any]struct{}, s.Len())

			iter := s.MapRange()
			for iter.Next() {
				k, err := key.fn(st, iter.Key(), reflect.Value{})
				if err != nil {
					return reflect.Value{}, wrapErr(fmt.Sprintf("%s[%v]", label, iter.Key()), err)
				}

				produced[k.Interface()] = struct{}{}

				var cur reflect.Value
				if !created {
					cur = out.MapIndex(k)
					if cc.rs == Merge && simple && cur.IsValid() && !cur.IsZero() {
						continue
					}
				}

				v, err := val.fn(st, iter.Value(), cur)
				if err != nil {
					return reflect.Value{}, wrapErr(fmt.Sprintf("%s[%v]", label, iter.Key()), err)
				}

				out.SetMapIndex(k, v)
			}

			if cc.rs == Overwrite && !created {
				for _, k := range out.MapKeys() {
					if _, ok := produced[k.Interface()]; !ok {
						out.SetMapIndex(k, reflect.Value{})
					}
				}
			}

			return out, nil
		},
	}, nil
}

// structToMap maps struct members into dictionary entries named after them.
// Nil members produce no entry.
func (cc *compilation) structToMap(src, dst reflect.Type) (compiled, error) {
	pairName := nodepkg.Pair{Src: src, Dst: dst}.String()
	rules := cc.rules.pair(src, dst)
	dstRoot := member.Root(dst)
	u := &unit{key: pairKey{src: src, dst: dst}}

	for _, f := range member.Fields(src) {
		entry := member.Entry(f.MapName(), dst.Elem())
		mp := memberPlan{target: entry, path: dstRoot.Append(entry).Path(), zeroOnAbsent: true}

		if rules != nil {
			if _, ok := rules.Ignore[f.Name]; ok {
				mp.ignored = true
				u.members = append(u.members, mp)

				continue
			}
		}

		c, err := cc.compile(f.Type, dst.Elem(), nil)
		if err != nil {
			cc.diags.AddWarning(diagnostic.CodeUnsupported, err.Error(), pairName, mp.path)
			continue
		}

		local := member.Root(src).Append(f)
		mp.sources = []sourcePlan{{
			ds: datasource.DataSource{
				Kind:     datasource.KindMember,
				Source:   local,
				Type:     f.Type,
				Describe: f.Name,
				Value: func(v reflect.Value) (reflect.Value, bool, error) {
					fv, ok := local.Get(v)
					if !ok || isNil(fv) {
						return reflect.Value{}, false, nil
					}

					return fv, true, nil
				},
			},
			compiled: c,
		}}

		u.members = append(u.members, mp)
	}

	u.fn = func(st *state, s, d reflect.Value) (reflect.Value, error) {
		created := cc.rs == CreateNew || !d.IsValid() || d.IsNil()

		out := d
		if created {
			out = reflect.MakeMapWithSize(dst, len(u.members))
		}

		for i := range u.members {
			mp := &u.members[i]
			if mp.ignored || len(mp.sources) == 0 {
				continue
			}

			k := reflect.ValueOf(mp.target.Name).Convert(dst.Key())

			var cur reflect.Value
			if !created {
				cur = out.MapIndex(k)
				if cc.rs == Merge && !isComplex(dst.Elem()) && cur.IsValid() && !cur.IsZero() {
					continue
				}
			}

			v, ok, err := mp.value(st, s, cur)
			if err != nil {
				return reflect.Value{}, err
			}

			switch {
			case ok:
				out.SetMapIndex(k, v)
			case cc.rs == Overwrite && !created:
				out.SetMapIndex(k, reflect.Value{})
			}
		}

		return out, nil
	}

	return compiled{strategy: StrategyStructToMap, unit: u, fn: u.fn}, nil
}
