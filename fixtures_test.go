package session

import (
	"time"

	"github.com/sessionkeys/starknet-session/go/starknet"
)

const (
	testAccount = "0x4a3b"
	testOwner   = "0x7f1c"
	testCaller  = "0x9c2d"
	testTokenA  = "0x49d36570d4e46f48e99674bd3fcc84644ddd6b96f7c741b1562b82f9e004dc7"
	testTokenB  = "0x4718f5a0fc34cc1af16a1cdee98ffb20c31f5cd61d6ab07201858f4287c938d"
	testTokenC  = "0x53c91253bc9682c04929ca02ed00b3e423f6710d2ee7e0d5ebb06f3ecf368a8"
)

var (
	testAfter  = time.Unix(1_700_000_000, 0)
	testBefore = time.Unix(1_700_003_600, 0)
)

func testWindow() TimeWindow {
	return TimeWindow{ExecuteAfter: testAfter, ExecuteBefore: testBefore}
}

func testMethods() []AllowedMethod {
	return []AllowedMethod{
		MethodByName("0x111", "transfer", ExactValue(0, "0x5")),
		MethodByName("0x222", "approve"),
	}
}

func testLimits() []SpendingLimit {
	return []SpendingLimit{
		{TokenAddress: testTokenA, Amount: starknet.Uint256{Low: "100", High: "0"}},
		{TokenAddress: testTokenB, Amount: starknet.Uint256{Low: "0x200", High: "0x1"}},
		{TokenAddress: testTokenC, Amount: starknet.Uint256{Low: "0", High: "0"}},
	}
}

func testSessionGrant() SessionGrant {
	return SessionGrant{
		SessionSignatureRequest: SessionSignatureRequest{
			OwnerPublicKey: testOwner,
			SessionRequest: SessionRequest{
				TimeWindow:     testWindow(),
				AllowedMethods: testMethods(),
				StrkGasLimit:   "1000000000",
				SpendingLimits: testLimits(),
			},
		},
		Signature: Signature{"0xaa", "0xbb"},
	}
}

func testGasSponsoredGrant() GasSponsoredGrant {
	return GasSponsoredGrant{
		GasSponsoredRequest: GasSponsoredRequest{
			CallerAddress:  testCaller,
			TimeWindow:     testWindow(),
			AllowedMethods: testMethods(),
			SpendingLimits: testLimits(),
		},
		Signature: Signature{"0xaa", "0xbb"},
	}
}

func transferCall(args ...string) starknet.Call {
	return starknet.Call{ContractAddress: "0x111", Entrypoint: "transfer", Calldata: args}
}
