package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"atelier/internal/engine"
	"atelier/internal/ffe"
	"atelier/internal/phase"
)

func registerRooms(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-room",
		Method:        http.MethodPost,
		Path:          "/projects/{project_id}/rooms",
		Summary:       "Create room",
		Description:   "Creates the room and pre-provisions one pending stage per phase.",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
		Body      CreateRoomRequest
	}) (*struct {
		Body RoomResponse
	}, error) {
		state, err := e.CreateRoom(ctx, input.ProjectID, input.Body.Name, actorID(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct{ Body RoomResponse }{Body: roomResponse(state)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-room",
		Method:      http.MethodGet,
		Path:        "/rooms/{room_id}",
		Summary:     "Get room with stages",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		RoomID string `path:"room_id"`
	}) (*struct {
		Body RoomResponse
	}, error) {
		state, err := e.RoomState(ctx, input.RoomID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct{ Body RoomResponse }{Body: roomResponse(state)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-rooms",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/rooms",
		Summary:     "List rooms",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct {
		Body []RoomResponse
	}, error) {
		if _, err := e.Repo.GetProject(ctx, input.ProjectID); err != nil {
			return nil, handleError(err)
		}
		rooms, err := e.Repo.ListRooms(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		out := make([]RoomResponse, 0, len(rooms))
		for _, room := range rooms {
			out = append(out, RoomResponse{ID: room.ID, ProjectID: room.ProjectID, Name: room.Name, CreatedAt: room.CreatedAt})
		}
		return &struct{ Body []RoomResponse }{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-room",
		Method:      http.MethodDelete,
		Path:        "/rooms/{room_id}",
		Summary:     "Delete room",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		RoomID string `path:"room_id"`
	}) (*struct{}, error) {
		if err := e.DeleteRoom(ctx, input.RoomID, actorID(ctx)); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-room-phases",
		Method:      http.MethodGet,
		Path:        "/rooms/{room_id}/phases",
		Summary:     "List a room's stages in phase order",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		RoomID string `path:"room_id"`
	}) (*struct {
		Body []StageResponse
	}, error) {
		state, err := e.RoomState(ctx, input.RoomID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct{ Body []StageResponse }{Body: stageResponses(state)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "apply-stage-action",
		Method:      http.MethodPost,
		Path:        "/rooms/{room_id}/stages/{stage_id}/actions",
		Summary:     "Apply a stage action",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		RoomID  string `path:"room_id"`
		StageID string `path:"stage_id"`
		Body    StageActionRequest
	}) (*struct {
		Body StageActionResponse
	}, error) {
		s, err := e.Repo.GetStage(ctx, input.StageID)
		if err != nil {
			return nil, handleError(err)
		}
		if s.RoomID != input.RoomID {
			return nil, newAPIError(http.StatusNotFound, "not_found", "stage not in room", nil)
		}
		res, err := e.ApplyAction(ctx, engine.ActionOptions{
			StageID:         input.StageID,
			Action:          engine.Action(input.Body.Action),
			MemberID:        input.Body.MemberID,
			DueDate:         input.Body.DueDate,
			NotifyConfirmed: input.Body.NotifyConfirmed,
			ActorID:         actorID(ctx),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct{ Body StageActionResponse }{Body: actionResponse(res)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-stage-due-date",
		Method:      http.MethodPut,
		Path:        "/rooms/{room_id}/stages/{stage_id}/due-date",
		Summary:     "Set or clear a stage due date",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		RoomID  string `path:"room_id"`
		StageID string `path:"stage_id"`
		Body    SetDueDateRequest
	}) (*struct {
		Body StageActionResponse
	}, error) {
		s, err := e.Repo.GetStage(ctx, input.StageID)
		if err != nil {
			return nil, handleError(err)
		}
		if s.RoomID != input.RoomID {
			return nil, newAPIError(http.StatusNotFound, "not_found", "stage not in room", nil)
		}
		res, err := e.ApplyAction(ctx, engine.ActionOptions{
			StageID: input.StageID,
			Action:  engine.ActionSetDueDate,
			DueDate: input.Body.DueDate,
			ActorID: actorID(ctx),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct{ Body StageActionResponse }{Body: actionResponse(res)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "bulk-assign-room",
		Method:      http.MethodPost,
		Path:        "/rooms/{room_id}/assignments",
		Summary:     "Assign one member to every stage of a room",
		Errors:      []int{http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		RoomID string `path:"room_id"`
		Body   BulkAssignRequest
	}) (*struct {
		Body RoomResponse
	}, error) {
		state, err := e.BulkAssign(ctx, input.RoomID, input.Body.MemberID, actorID(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct{ Body RoomResponse }{Body: roomResponse(state)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "export-room-ffe",
		Method:      http.MethodGet,
		Path:        "/rooms/{room_id}/ffe/export",
		Summary:     "Export the room's FFE schedule as xlsx",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		RoomID string `path:"room_id"`
	}) (*huma.StreamResponse, error) {
		room, err := e.Repo.GetRoom(ctx, input.RoomID)
		if err != nil {
			return nil, handleError(err)
		}
		products, err := e.Repo.ListProducts(ctx, input.RoomID)
		if err != nil {
			return nil, handleError(err)
		}
		data, err := ffe.Export(room.Name, products)
		if err != nil {
			return nil, handleError(err)
		}
		return &huma.StreamResponse{
			Body: func(hctx huma.Context) {
				hctx.SetHeader("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
				hctx.SetHeader("Content-Disposition", fmt.Sprintf("attachment; filename=%q", room.Name+" FFE.xlsx"))
				hctx.BodyWriter().Write(data)
			},
		}, nil
	})
}

func roomResponse(state engine.RoomState) RoomResponse {
	return RoomResponse{
		ID:        state.Room.ID,
		ProjectID: state.Room.ProjectID,
		Name:      state.Room.Name,
		CreatedAt: state.Room.CreatedAt,
		Stages:    stageResponses(state),
	}
}

func stageResponses(state engine.RoomState) []StageResponse {
	out := make([]StageResponse, 0, len(state.Stages))
	for _, s := range state.Stages {
		out = append(out, stageResponse(s, phase.Label(s.Phase)))
	}
	return out
}

func actionResponse(res engine.ActionResult) StageActionResponse {
	return StageActionResponse{
		Stage: stageResponse(res.Stage, phase.Label(res.Stage.Phase)),
		Room: roomResponse(engine.RoomState{
			Room:   res.Room,
			Stages: res.Stages,
		}),
		Notifications: outcomeResponse(res.Notifications),
	}
}
