// Hand-written in the shape go.uber.org/mock's mockgen produces for a
// single-method interface; kept alongside the interface it mocks rather
// than in a generated-code subdirectory since TransactionObserver has no
// other consumers that would want to reuse it.
package coherence_test

import (
	"reflect"

	"go.uber.org/mock/gomock"

	"github.com/sarchlab/cohsim/internal/coherence"
)

// MockTransactionObserver is a mock of the TransactionObserver interface.
type MockTransactionObserver struct {
	ctrl     *gomock.Controller
	recorder *MockTransactionObserverMockRecorder
}

// MockTransactionObserverMockRecorder is the mock recorder for
// MockTransactionObserver.
type MockTransactionObserverMockRecorder struct {
	mock *MockTransactionObserver
}

// NewMockTransactionObserver creates a new mock instance.
func NewMockTransactionObserver(ctrl *gomock.Controller) *MockTransactionObserver {
	mock := &MockTransactionObserver{ctrl: ctrl}
	mock.recorder = &MockTransactionObserverMockRecorder{mock}

	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockTransactionObserver) EXPECT() *MockTransactionObserverMockRecorder {
	return m.recorder
}

// ObserveTransaction mocks base method.
func (m *MockTransactionObserver) ObserveTransaction(cycle int, tx coherence.Transaction) {
	m.ctrl.T.Helper()
	m.ctrl.Call(m, "ObserveTransaction", cycle, tx)
}

// ObserveTransaction indicates an expected call of ObserveTransaction.
func (mr *MockTransactionObserverMockRecorder) ObserveTransaction(cycle, tx any) *gomock.Call {
	mr.mock.ctrl.T.Helper()

	return mr.mock.ctrl.RecordCallWithMethodType(
		mr.mock, "ObserveTransaction",
		reflect.TypeOf((*MockTransactionObserver)(nil).ObserveTransaction),
		cycle, tx)
}
