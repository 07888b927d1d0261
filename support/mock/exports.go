package mock

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/DianaJonathan/timecapsule/actors/runtime"
)

// CheckActorExports checks that every method exported by an actor has the shape the VM dispatches on.
func CheckActorExports(t *testing.T, act interface{ Exports() []interface{} }) {
	for i, m := range act.Exports() {
		if i == 0 { // Send is implicit
			continue
		}

		if m == nil {
			continue
		}

		meth := reflect.ValueOf(m)
		mt := meth.Type()
		require.Equal(t, 2, mt.NumIn(), "method %d must take two arguments", i)
		require.Equal(t, reflect.TypeOf((*runtime.Runtime)(nil)).Elem(), mt.In(0), "method %d must take a runtime first", i)
		require.True(t, mt.In(1).Implements(typeOfCborUnmarshaler), "method %d params must be CBOR-unmarshalable", i)
		require.Equal(t, 1, mt.NumOut(), "method %d must return a single value", i)
		require.True(t, mt.Out(0).Implements(typeOfCborMarshaler), "method %d return must be CBOR-marshalable", i)
	}
}
