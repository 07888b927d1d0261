package main

import (
	gen "github.com/whyrusleeping/cbor-gen"

	"github.com/DianaJonathan/timecapsule/actors/builtin/capsule"
	"github.com/DianaJonathan/timecapsule/actors/builtin/system"
	"github.com/DianaJonathan/timecapsule/client/ledger"
	"github.com/DianaJonathan/timecapsule/client/session"
	"github.com/DianaJonathan/timecapsule/support/vm"
)

func main() {
	// Actors
	if err := gen.WriteTupleEncodersToFile("./actors/builtin/system/cbor_gen.go", "system",
		// actor state
		system.State{},
	); err != nil {
		panic(err)
	}

	if err := gen.WriteTupleEncodersToFile("./actors/builtin/capsule/cbor_gen.go", "capsule",
		// actor state
		capsule.State{},
		capsule.Capsule{},
		// method params
		capsule.CreateCapsuleParams{},
		capsule.CapsuleIDParams{},
		capsule.IdentityParams{},
		// method returns
		capsule.CreateCapsuleReturn{},
		capsule.MetadataReturn{},
		capsule.HandlesReturn{},
		capsule.CapsuleIDsReturn{},
		// events
		capsule.CapsuleCreatedEvent{},
		capsule.CapsuleUnlockedEvent{},
	); err != nil {
		panic(err)
	}

	// Support
	if err := gen.WriteTupleEncodersToFile("./support/vm/cbor_gen.go", "vm",
		vm.Actor{},
	); err != nil {
		panic(err)
	}

	// Client
	if err := gen.WriteTupleEncodersToFile("./client/ledger/cbor_gen.go", "ledger",
		ledger.Message{},
		ledger.SignedMessage{},
		ledger.Receipt{},
	); err != nil {
		panic(err)
	}

	if err := gen.WriteTupleEncodersToFile("./client/session/cbor_gen.go", "session",
		session.Statement{},
	); err != nil {
		panic(err)
	}
}
