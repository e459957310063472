package probe

// ChildFlag is the reserved argument that selects child mode. Its absence
// selects parent (supervisor) mode.
const ChildFlag = "--hangcheck-child"

// OperationEnv names the environment variable through which the supervisor
// tells the child which operation to run.
const OperationEnv = "HANGCHECK_OPERATION"

// Mode is the role the binary plays for the lifetime of the process.
type Mode int

const (
	// Parent supervises a child and reports a verdict.
	Parent Mode = iota
	// Child runs the risky operation and reports through stdout.
	Child
)

func (m Mode) String() string {
	if m == Child {
		return "child"
	}
	return "parent"
}

// DetectMode returns Child if ChildFlag appears anywhere in args.
func DetectMode(args []string) Mode {
	for _, a := range args {
		if a == ChildFlag {
			return Child
		}
	}
	return Parent
}
