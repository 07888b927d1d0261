package builtin

import (
	"github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"
)

// The built-in actor code IDs
var SystemActorCodeID cid.Cid
var AccountActorCodeID cid.Cid
var CapsuleStoreActorCodeID cid.Cid
var CallerTypesSignable []cid.Cid

func init() {
	builder := cid.V1Builder{Codec: cid.Raw, MhType: mh.IDENTITY}
	makeBuiltin := func(s string) cid.Cid {
		c, err := builder.Sum([]byte(s))
		if err != nil {
			panic(err)
		}
		return c
	}

	SystemActorCodeID = makeBuiltin("capsule/1/system")
	AccountActorCodeID = makeBuiltin("capsule/1/account")
	CapsuleStoreActorCodeID = makeBuiltin("capsule/1/capsulestore")

	// Set of actor code types that can represent external signing parties.
	CallerTypesSignable = []cid.Cid{AccountActorCodeID}
}

// IsBuiltinActor returns true if the code belongs to an actor defined in this repo.
func IsBuiltinActor(code cid.Cid) bool {
	return code.Equals(SystemActorCodeID) ||
		code.Equals(AccountActorCodeID) ||
		code.Equals(CapsuleStoreActorCodeID)
}

// ActorNameByCode returns the (string) name of the actor given a cid code.
func ActorNameByCode(code cid.Cid) string {
	if !code.Defined() {
		return "<undefined>"
	}

	names := map[cid.Cid]string{
		SystemActorCodeID:       "capsule/1/system",
		AccountActorCodeID:      "capsule/1/account",
		CapsuleStoreActorCodeID: "capsule/1/capsulestore",
	}
	name, ok := names[code]
	if !ok {
		return "<unknown>"
	}
	return name
}
