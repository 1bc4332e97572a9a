package runner

import (
	"errors"
	"fmt"
)

var errNoSignerSource = errors.New("directive has no from_pool, from_addr, or funder to fall back to")

func errUnknownPool(name string) error {
	return fmt.Errorf("unknown pool %q", name)
}
