package chain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// 合约方法名
const (
	MethodCreateCampaign    = "createCampaign"
	MethodContribute        = "contributeToCampaign"
	MethodVote              = "vote"
	MethodFinalizeMilestone = "finalizeMilestoneAndDisburseFunds"
)

// defaultCrowdfundingABI 众筹合约ABI（只包含后端调用的方法）
const defaultCrowdfundingABI = `[
	{
		"inputs": [
			{"internalType": "string", "name": "_mongoId", "type": "string"},
			{"internalType": "address payable", "name": "_recipient", "type": "address"},
			{"internalType": "uint256", "name": "_targetAmount", "type": "uint256"},
			{"internalType": "uint256", "name": "_deadline", "type": "uint256"},
			{"internalType": "uint256[]", "name": "_milestoneDeadlines", "type": "uint256[]"},
			{"internalType": "uint256[]", "name": "_completionPercentages", "type": "uint256[]"}
		],
		"name": "createCampaign",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [{"internalType": "string", "name": "_mongoId", "type": "string"}],
		"name": "contributeToCampaign",
		"outputs": [],
		"stateMutability": "payable",
		"type": "function"
	},
	{
		"inputs": [{"internalType": "string", "name": "_mongoId", "type": "string"}],
		"name": "vote",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [{"internalType": "string", "name": "_mongoId", "type": "string"}],
		"name": "finalizeMilestoneAndDisburseFunds",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	}
]`

// LoadABI 加载合约ABI，path 为空时使用内置ABI
// 文件可以是 ABI 数组，也可以是带 abi 字段的完整编译输出
func LoadABI(path string) (abi.ABI, error) {
	if path == "" {
		return ParseABI([]byte(defaultCrowdfundingABI))
	}

	abiData, err := os.ReadFile(path)
	if err != nil {
		return abi.ABI{}, fmt.Errorf("failed to load ABI from %s: %w", path, err)
	}
	return ParseABI(abiData)
}

// ParseABI 解析ABI数据并检查必需的方法
func ParseABI(abiData []byte) (abi.ABI, error) {
	var compiledOutput struct {
		ABI json.RawMessage `json:"abi"`
	}

	var (
		parsedABI abi.ABI
		err       error
	)

	// 首先尝试解析为完整编译输出
	if jsonErr := json.Unmarshal(abiData, &compiledOutput); jsonErr == nil && compiledOutput.ABI != nil {
		parsedABI, err = abi.JSON(bytes.NewReader(compiledOutput.ABI))
		if err != nil {
			return abi.ABI{}, fmt.Errorf("failed to parse ABI from compiled output: %w", err)
		}
	} else {
		parsedABI, err = abi.JSON(bytes.NewReader(abiData))
		if err != nil {
			return abi.ABI{}, fmt.Errorf("failed to parse ABI: %w", err)
		}
	}

	var missing []string
	for _, method := range []string{MethodCreateCampaign, MethodContribute, MethodVote, MethodFinalizeMilestone} {
		if _, ok := parsedABI.Methods[method]; !ok {
			missing = append(missing, method)
		}
	}
	if len(missing) > 0 {
		return abi.ABI{}, fmt.Errorf("ABI is missing methods: %s", strings.Join(missing, ", "))
	}

	return parsedABI, nil
}
