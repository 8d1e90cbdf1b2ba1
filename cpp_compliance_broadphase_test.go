package box2d_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/jbox2d/box2d"
	"github.com/pmezard/go-difflib/difflib"
)

// Pair transcript for a hand-checked four proxy scene: fat margins of 0.1
// make A and D touch, and the moved C only reaches D's fat box.
var expectedBroadPhase string = `step 1: A-B A-D B-D
step 2: C-D
step 3: A-B A-D
step 4: none
proxies = 3, height = 2
`

func TestCPPComplianceBroadPhase(t *testing.T) {
	bp := box2d.MakeB2BroadPhase()

	ids := map[string]int{}
	create := func(name string, lx, ly, ux, uy float32) {
		id, err := bp.CreateProxy(box2d.MakeB2AABBFromBounds(lx, ly, ux, uy), name)
		if err != nil {
			t.Fatal(err)
		}
		ids[name] = id
	}
	create("A", 0, 0, 1, 1)
	create("B", 0.5, 0.5, 1.5, 1.5)
	create("C", 10, 10, 11, 11)
	create("D", 1.15, 0, 2, 1)

	var out strings.Builder
	step := 0
	update := func() {
		step++
		var pairs []string
		err := bp.UpdatePairs(func(userDataA interface{}, userDataB interface{}) {
			pairs = append(pairs, fmt.Sprintf("%v-%v", userDataA, userDataB))
		})
		if err != nil {
			t.Fatal(err)
		}
		if len(pairs) == 0 {
			pairs = append(pairs, "none")
		}
		fmt.Fprintf(&out, "step %d: %s\n", step, strings.Join(pairs, " "))
	}

	update()

	if err := bp.MoveProxy(ids["C"], box2d.MakeB2AABBFromBounds(2.05, 0.2, 3, 0.8), box2d.MakeB2Vec2(0, 0)); err != nil {
		t.Fatal(err)
	}
	update()

	if err := bp.TouchProxy(ids["A"]); err != nil {
		t.Fatal(err)
	}
	update()

	if err := bp.DestroyProxy(ids["B"]); err != nil {
		t.Fatal(err)
	}
	if err := bp.MoveProxy(ids["D"], box2d.MakeB2AABBFromBounds(50, 50, 51, 51), box2d.MakeB2Vec2(1, 1)); err != nil {
		t.Fatal(err)
	}
	update()

	fmt.Fprintf(&out, "proxies = %d, height = %d\n", bp.GetProxyCount(), bp.GetTreeHeight())

	if err := bp.Validate(); err != nil {
		t.Fatal(err)
	}

	output := out.String()
	fmt.Print(output)

	if output != expectedBroadPhase {
		diff := difflib.UnifiedDiff{
			A:        difflib.SplitLines(expectedBroadPhase),
			B:        difflib.SplitLines(output),
			FromFile: "Expected",
			ToFile:   "Current",
			Context:  0,
		}
		text, _ := difflib.GetUnifiedDiffString(diff)
		t.Fatalf("NOT Matching expected pair transcript. Failure: \n%s", text)
	}
}
