package source

import "github.com/solvirx/tokenwatch/core"

// placeholderTokens is the fixed fallback set served when the primary feed is
// unreachable and no cache exists. Downstream logic never has to handle an
// empty primary result; the synthetic address prefix makes them easy to spot.
func placeholderTokens() []core.Token {
	return []core.Token{
		{
			Address:  "mock1111111111111111111111111111111111111",
			Name:     "Mock Token 1",
			Symbol:   "MOCK1",
			Deployer: "mockdeployer111111111111111111111111111111",
			Creator:  "mockcreator1111111111111111111111111111111",
			Website:  "https://mocktoken1.com",
			Twitter:  "@mocktoken1",
			Source:   core.SourcePrimary,
		},
		{
			Address:  "mock2222222222222222222222222222222222222",
			Name:     "Mock Token 2",
			Symbol:   "MOCK2",
			Deployer: "mockdeployer222222222222222222222222222222",
			Creator:  "mockcreator2222222222222222222222222222222",
			Website:  "https://mocktoken2.com",
			Twitter:  "@mocktoken2",
			Source:   core.SourcePrimary,
		},
	}
}
