package client

import (
	"encoding/json"
	"log"

	"github.com/boristopalov/gymbridge/pkg/core"
)

// object is a reference into the worker's object table.
type object struct {
	b        *Bridge
	ref      int64
	released bool
}

var _ core.Object = (*object)(nil)

func (o *object) do(req request) (response, error) {
	if o.released {
		return response{}, ErrReleased
	}
	req.Ref = o.ref
	return o.b.roundTrip(req)
}

func (o *object) child(req request) (core.Object, error) {
	resp, err := o.do(req)
	if err != nil {
		return nil, err
	}
	return &object{b: o.b, ref: resp.Ref}, nil
}

func (o *object) Attr(name string) (core.Object, error) {
	return o.child(request{Op: "getattr", Name: name})
}

func (o *object) HasAttr(name string) (bool, error) {
	resp, err := o.do(request{Op: "hasattr", Name: name})
	if err != nil {
		return false, err
	}
	var ok bool
	if err := json.Unmarshal(resp.Value, &ok); err != nil {
		return false, err
	}
	return ok, nil
}

func (o *object) Call(args []any, kwargs map[string]any) (core.Object, error) {
	wargs, wkwargs, err := encodeArgs(args, kwargs)
	if err != nil {
		return nil, err
	}
	return o.child(request{Op: "call", Args: wargs, Kwargs: wkwargs})
}

func (o *object) CallMethod(name string, args []any, kwargs map[string]any) (core.Object, error) {
	wargs, wkwargs, err := encodeArgs(args, kwargs)
	if err != nil {
		return nil, err
	}
	return o.child(request{Op: "callmethod", Name: name, Args: wargs, Kwargs: wkwargs})
}

func (o *object) Item(i int) (core.Object, error) {
	return o.child(request{Op: "getitem", Index: i})
}

func (o *object) Len() (int, error) {
	resp, err := o.do(request{Op: "len"})
	if err != nil {
		return 0, err
	}
	var n int
	if err := json.Unmarshal(resp.Value, &n); err != nil {
		return 0, err
	}
	return n, nil
}

func (o *object) Extract(dst any) error {
	kind, err := extractKind(dst)
	if err != nil {
		return err
	}
	resp, err := o.do(request{Op: "extract", Kind: kind})
	if err != nil {
		return err
	}
	return decodeValue(resp.Value, dst)
}

func (o *object) Release() {
	if o.released {
		return
	}
	if _, err := o.do(request{Op: "release"}); err != nil {
		log.Printf("Failed to release object %d on %s: %v", o.ref, o.b.id, err)
	}
	o.released = true
}
