package cart

import "fmt"

// Owner identifies who a cart belongs to: exactly one of an authenticated
// account or an anonymous session key. The zero Owner is invalid; the
// constructors are the only way to build a usable value, so "both" and
// "neither" cannot be represented.
type Owner struct {
	accountID  uint
	sessionKey string
}

func AccountOwner(accountID uint) Owner {
	return Owner{accountID: accountID}
}

func SessionOwner(sessionKey string) Owner {
	return Owner{sessionKey: sessionKey}
}

func (o Owner) Account() (uint, bool) {
	return o.accountID, o.accountID != 0
}

func (o Owner) Session() (string, bool) {
	return o.sessionKey, o.accountID == 0 && o.sessionKey != ""
}

func (o Owner) IsZero() bool {
	return o.accountID == 0 && o.sessionKey == ""
}

func (o Owner) String() string {
	if id, ok := o.Account(); ok {
		return fmt.Sprintf("account:%d", id)
	}
	if key, ok := o.Session(); ok {
		return "session:" + key
	}
	return "unowned"
}
