package slicesx

import "fmt"

func sprint(e any) string {
	return fmt.Sprint(e)
}
