package tree

import "github.com/meridianchain/drive/pkg/codec"

// MarshalCanonical implements codec.Marshaler, letting a Proof travel as
// opaque bytes: the client never inspects them directly, only feeds them
// back into Verify after decoding.
func (p *Proof) MarshalCanonical(w *codec.Writer) {
	w.PutVarUint(uint64(len(p.Levels)))
	for i := range p.Levels {
		p.Levels[i].marshal(w)
	}
}

func (p *Proof) UnmarshalCanonical(r *codec.Reader) error {
	n, err := r.VarUint()
	if err != nil {
		return err
	}
	p.Levels = make([]LevelProof, n)
	for i := range p.Levels {
		if err := p.Levels[i].unmarshal(r); err != nil {
			return err
		}
	}
	return nil
}

func (lp *LevelProof) marshal(w *codec.Writer) {
	lp.Path.MarshalCanonical(w)
	w.PutBytes(lp.Key)
	w.PutBool(lp.Present)
	w.PutUint32(uint32(lp.EntryCount))
	if lp.Present {
		lp.Entry.marshal(w)
		marshalSteps(w, lp.Steps)
	}
	w.PutBool(lp.NeighborLow != nil)
	if lp.NeighborLow != nil {
		lp.NeighborLow.marshal(w)
	}
	w.PutBool(lp.NeighborHigh != nil)
	if lp.NeighborHigh != nil {
		lp.NeighborHigh.marshal(w)
	}
}

func (lp *LevelProof) unmarshal(r *codec.Reader) error {
	if err := lp.Path.UnmarshalCanonical(r); err != nil {
		return err
	}
	var err error
	if lp.Key, err = r.Bytes(); err != nil {
		return err
	}
	if lp.Present, err = r.Bool(); err != nil {
		return err
	}
	count, err := r.Uint32()
	if err != nil {
		return err
	}
	lp.EntryCount = int(count)
	if lp.Present {
		if err := lp.Entry.unmarshal(r); err != nil {
			return err
		}
		if lp.Steps, err = unmarshalSteps(r); err != nil {
			return err
		}
	}
	hasLow, err := r.Bool()
	if err != nil {
		return err
	}
	if hasLow {
		lp.NeighborLow = &NeighborProof{}
		if err := lp.NeighborLow.unmarshal(r); err != nil {
			return err
		}
	}
	hasHigh, err := r.Bool()
	if err != nil {
		return err
	}
	if hasHigh {
		lp.NeighborHigh = &NeighborProof{}
		if err := lp.NeighborHigh.unmarshal(r); err != nil {
			return err
		}
	}
	return nil
}

func (np *NeighborProof) marshal(w *codec.Writer) {
	np.Entry.marshal(w)
	marshalSteps(w, np.Steps)
}

func (np *NeighborProof) unmarshal(r *codec.Reader) error {
	if err := np.Entry.unmarshal(r); err != nil {
		return err
	}
	var err error
	np.Steps, err = unmarshalSteps(r)
	return err
}

func (e *EntrySummary) marshal(w *codec.Writer) {
	w.PutBytes(e.Key)
	w.PutTag(uint8(e.Kind))
	w.PutBytes(e.Item)
	e.RefPath.MarshalCanonical(w)
	w.PutBytes(e.RefKey)
	w.PutInt64(e.SumValue)
	w.PutBytes(e.ChildDigest)
}

func (e *EntrySummary) unmarshal(r *codec.Reader) error {
	var err error
	if e.Key, err = r.Bytes(); err != nil {
		return err
	}
	tag, err := r.Tag()
	if err != nil {
		return err
	}
	e.Kind = Kind(tag)
	if e.Item, err = r.Bytes(); err != nil {
		return err
	}
	if err := e.RefPath.UnmarshalCanonical(r); err != nil {
		return err
	}
	if e.RefKey, err = r.Bytes(); err != nil {
		return err
	}
	if e.SumValue, err = r.Int64(); err != nil {
		return err
	}
	e.ChildDigest, err = r.Bytes()
	return err
}

func marshalSteps(w *codec.Writer, steps []AuditStep) {
	w.PutVarUint(uint64(len(steps)))
	for _, s := range steps {
		w.PutBool(s.Promoted)
		w.PutBool(s.SiblingOnRight)
		w.PutBytes(s.Sibling)
	}
}

func unmarshalSteps(r *codec.Reader) ([]AuditStep, error) {
	n, err := r.VarUint()
	if err != nil {
		return nil, err
	}
	steps := make([]AuditStep, n)
	for i := range steps {
		if steps[i].Promoted, err = r.Bool(); err != nil {
			return nil, err
		}
		if steps[i].SiblingOnRight, err = r.Bool(); err != nil {
			return nil, err
		}
		if steps[i].Sibling, err = r.Bytes(); err != nil {
			return nil, err
		}
	}
	return steps, nil
}
