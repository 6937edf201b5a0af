package codegen

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/hashicorp/go-multierror"
)

type jnode struct {
	next *jnode
	j    NamedJenny
}

// JennyListWithNamer creates a new JennyList that decorates errors using the
// provided namer func, which can derive a meaningful identifier string from the
// Input type for the JennyList.
func JennyListWithNamer[Input any](namer func(t Input) string) *JennyList[Input] {
	return &JennyList[Input]{
		inputnamer: namer,
	}
}

// JennyList is an ordered collection of jennies. When called, it constructs
// an FS by calling each of its contained jennies in order.
//
// The File outputs of all member jennies in a JennyList exist in the same
// relative path namespace. Path uniqueness (per Files.Validate) is enforced
// across the aggregate set of Files.
type JennyList[Input any] struct {
	mut sync.RWMutex

	// entrypoint to the singly linked list of jennies
	first *jnode

	// postprocessors, to be run on every file returned from each contained jenny
	post []FileMapper

	// inputnamer, if non-nil, gives a name to an input.
	inputnamer func(t Input) string
}

func (js *JennyList[Input]) last() *jnode {
	j := js.first
	for j != nil && j.next != nil {
		j = j.next
	}
	return j
}

func (js *JennyList[Input]) JennyName() string {
	return fmt.Sprintf("JennyList[%s]", reflect.TypeOf(new(Input)).Elem().String())
}

func (js *JennyList[Input]) wrapinerr(in Input, err error) error {
	if err == nil {
		return nil
	}
	if js.inputnamer == nil {
		return err
	}
	return fmt.Errorf("%w for input %q", err, js.inputnamer(in))
}

// GenerateFS calls every jenny in order and collects their output. Errors
// from all jennies and inputs are aggregated; any error means no FS.
func (js *JennyList[Input]) GenerateFS(objs ...Input) (*FS, error) {
	js.mut.RLock()
	defer js.mut.RUnlock()

	jfs := NewFS()
	if js.first == nil {
		return jfs, nil
	}

	out := func(j NamedJenny, f *File, err error) error {
		if err != nil {
			return fmt.Errorf("%s: %w", j.JennyName(), err)
		}
		if f == nil || !f.Exists() {
			return nil
		}

		fc := *f
		fc.From = append([]NamedJenny{j}, fc.From...)
		if err = fc.Validate(); err != nil {
			return fmt.Errorf("%s returned an invalid File: %w", j.JennyName(), err)
		}
		for _, post := range js.post {
			of, err := post(fc)
			if err != nil {
				return fmt.Errorf("postprocessing of %s from %s failed: %w", fc.RelativePath, jennystack(fc.From), err)
			}
			fc = of
		}
		return jfs.Add(j.JennyName(), fc)
	}

	result := new(multierror.Error)
	for jn := js.first; jn != nil; jn = jn.next {
		switch jenny := jn.j.(type) {
		case OneToOne[Input]:
			for _, obj := range objs {
				f, err := jenny.Generate(obj)
				if procerr := js.wrapinerr(obj, out(jenny, f, err)); procerr != nil {
					result = multierror.Append(result, procerr)
				}
			}
		case ManyToOne[Input]:
			f, err := jenny.Generate(objs...)
			if procerr := out(jenny, f, err); procerr != nil {
				result = multierror.Append(result, procerr)
			}
		default:
			panic("unreachable")
		}
	}

	if result.ErrorOrNil() != nil {
		return nil, multierror.Flatten(result)
	}
	return jfs, nil
}

// Generate is like GenerateFS, returning the generated Files.
func (js *JennyList[Input]) Generate(objs ...Input) (Files, error) {
	jfs, err := js.GenerateFS(objs...)
	if err != nil {
		return nil, err
	}
	return jfs.AsFiles(), nil
}

func (js *JennyList[Input]) append(n ...*jnode) {
	if len(n) == 0 {
		return
	}
	js.mut.Lock()
	defer js.mut.Unlock()
	last := js.last()
	if last == nil {
		js.first = n[0]
		n = n[1:]
		last = js.first
	}
	for _, jn := range n {
		last.next = jn
		last = last.next
	}
}

func tojnode[J NamedJenny](jennies ...J) []*jnode {
	nlist := make([]*jnode, len(jennies))
	for i, j := range jennies {
		nlist[i] = &jnode{
			j: j,
		}
	}
	return nlist
}

// AppendOneToOne adds OneToOne jennies to the end of the JennyList. In
// Generate, jennies are called in the order they were appended.
func (js *JennyList[Input]) AppendOneToOne(jennies ...OneToOne[Input]) {
	js.append(tojnode(jennies...)...)
}

// AppendManyToOne is like AppendOneToOne, for ManyToOne jennies.
func (js *JennyList[Input]) AppendManyToOne(jennies ...ManyToOne[Input]) {
	js.append(tojnode(jennies...)...)
}

// AddPostprocessors appends FileMappers to the list of postprocessors.
//
// Postprocessors are run (FIFO) on every File produced by the JennyList.
func (js *JennyList[Input]) AddPostprocessors(fn ...FileMapper) {
	js.mut.Lock()
	js.post = append(js.post, fn...)
	js.mut.Unlock()
}
