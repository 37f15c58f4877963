package bank

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

const bankPrefix = "bank"

func tokenKey(id common.Address) []byte {
	return []byte(fmt.Sprintf("%s/token/%x", bankPrefix, id.Bytes()))
}

func balanceKey(account, id common.Address) []byte {
	return []byte(fmt.Sprintf("%s/balance/%x/%x", bankPrefix, account.Bytes(), id.Bytes()))
}
