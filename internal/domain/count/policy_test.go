package count

import "testing"

func TestApprovalPolicy(t *testing.T) {
	policy, err := NewApprovalPolicy("discrepancy >= -2 && discrepancy <= 2")
	if err != nil {
		t.Fatalf("NewApprovalPolicy: %v", err)
	}

	cases := []struct {
		expected, counted int
		want              bool
	}{
		{10, 10, true},
		{10, 8, true},
		{10, 12, true},
		{10, 7, false},
		{10, 13, false},
		{0, 2, true},
		{100, 0, false},
	}
	for _, tc := range cases {
		got, err := policy.Approve(tc.expected, tc.counted)
		if err != nil {
			t.Fatalf("Approve(%d, %d): %v", tc.expected, tc.counted, err)
		}
		if got != tc.want {
			t.Errorf("Approve(%d, %d) = %v, want %v", tc.expected, tc.counted, got, tc.want)
		}
	}
}

func TestApprovalPolicyUsesAllVariables(t *testing.T) {
	policy, err := NewApprovalPolicy("counted > 0 && expected - counted == 1")
	if err != nil {
		t.Fatalf("NewApprovalPolicy: %v", err)
	}

	if ok, _ := policy.Approve(5, 4); !ok {
		t.Error("Approve(5, 4) = false, want true")
	}
	if ok, _ := policy.Approve(1, 0); ok {
		t.Error("Approve(1, 0) = true, want false")
	}
}

func TestApprovalPolicyRejectsBadExpressions(t *testing.T) {
	if _, err := NewApprovalPolicy("discrepancy >"); err == nil {
		t.Error("syntax error should fail compilation")
	}
	if _, err := NewApprovalPolicy("discrepancy + 1"); err == nil {
		t.Error("non-boolean expression should be rejected")
	}
	if _, err := NewApprovalPolicy("unknown_var == 0"); err == nil {
		t.Error("unknown variable should fail compilation")
	}
}
