package builtin

import (
	"github.com/filecoin-project/go-state-types/abi"
)

const MethodConstructor = abi.MethodNum(1)

var MethodsCapsule = struct {
	Constructor          abi.MethodNum
	CreateCapsule        abi.MethodNum
	UnlockCapsule        abi.MethodNum
	GetMetadata          abi.MethodNum
	GetCiphertextHandles abi.MethodNum
	CanUnlock            abi.MethodNum
	ListCapsulesFor      abi.MethodNum
	TotalCapsules        abi.MethodNum
}{MethodConstructor, 2, 3, 4, 5, 6, 7, 8}
