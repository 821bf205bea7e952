package rpc

// ServiceName is the gRPC service path both pkg/server/grpc.go's
// grpc.ServiceDesc and pkg/client/grpc_transport.go's Invoke/NewStream
// calls address, standing in for what a protoc-generated service name
// would otherwise pin down.
const ServiceName = "a2a.v1.A2AService"

// Per-method full paths, "/<service>/<method>", matching the JSON-RPC
// method table one-for-one so the three wire adapters stay isomorphic.
const (
	MethodSendMessage         = "/" + ServiceName + "/SendMessage"
	MethodSendMessageStream   = "/" + ServiceName + "/SendMessageStream"
	MethodGetTask             = "/" + ServiceName + "/GetTask"
	MethodListTasks           = "/" + ServiceName + "/ListTasks"
	MethodCancelTask          = "/" + ServiceName + "/CancelTask"
	MethodResubscribe         = "/" + ServiceName + "/Resubscribe"
	MethodSetTaskCallback     = "/" + ServiceName + "/SetTaskPushNotificationConfig"
	MethodGetTaskCallback     = "/" + ServiceName + "/GetTaskPushNotificationConfig"
	MethodListTaskCallbacks   = "/" + ServiceName + "/ListTaskPushNotificationConfigs"
	MethodDeleteTaskCallback  = "/" + ServiceName + "/DeleteTaskPushNotificationConfig"
	MethodGetExtendedCard     = "/" + ServiceName + "/GetExtendedAgentCard"
)
