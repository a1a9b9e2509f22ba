package node_test

import (
	"fmt"

	"struct-mapper/node"
)

func ExampleStem() {
	st := node.NewStem("map", nil)
	fmt.Println(st.Next(), st.Next(), st.Next())

	st = node.NewStem("val", map[string]struct{}{"val2": {}})
	st.Reserve("val4")
	fmt.Println(st.Next(), st.Next(), st.Next())

	// Output:
	// map1 map2 map3
	// val1 val3 val5
}
